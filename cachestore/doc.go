// TTL'd cache for derived views of persistent records, grouped into named
// views so each can carry its own expiry.
//
// Includes an interface and implementations using redis and in-process
// memory. The decision engine caches per-user reputation views here to keep
// hot-path reads off the persistent store; writers purge the cached view
// whenever the underlying record changes, so staleness is bounded by the
// view TTL only for out-of-process writers.
package cachestore
