// Moderation decision engine for real-time chat communities.
//
// This package (`github.com/chatguard/chatguard`) fuses the output of multiple content classifier layers into a single threat assessment per message, maintains decaying and redeemable per-user reputation scores, and walks per-community escalation ladders when violations repeat inside sliding time windows. The engine only decides; enforcement (deleting messages, timing users out, banning) is the job of whatever chat platform integration calls it. Calls to the upstream classifier service go through a resilience gateway with a circuit breaker and rate limiting, and every failure path degrades to "no additional signal" so a classifier outage never blocks message flow.
//
// See `cmd/warden` for a daemon built on this package.
package chatguard
