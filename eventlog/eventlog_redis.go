package eventlog

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisEventPrefix string = "violations/"
var redisCategoryPrefix string = "violation-categories/"

// RedisEventLog stores events in per-(scope,user,category) sorted sets scored
// by unix-milli timestamp, so windowed counts are a single ZCOUNT.
type RedisEventLog struct {
	Client *redis.Client
}

var _ EventLog = (*RedisEventLog)(nil)

var eventSeq atomic.Uint64

// eventMember builds a unique sorted-set member for one event. ZADD dedupes
// members, so two events in the same nanosecond for the same policy would
// otherwise collapse into one; the process-local sequence keeps them distinct.
func eventMember(ev ViolationEvent) string {
	return fmt.Sprintf("%d/%s/%d", ev.Time.UnixNano(), ev.PolicyID, eventSeq.Add(1))
}

func NewRedisEventLog(redisURL string) (*RedisEventLog, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisEventLog{
		Client: rdb,
	}, nil
}

func (s *RedisEventLog) Add(ctx context.Context, ev ViolationEvent) error {
	key := redisEventPrefix + eventKey(ev.Scope, ev.UserID, ev.Category)
	catKey := redisCategoryPrefix + ev.UserID
	member := eventMember(ev)

	// one round-trip: append event, trim aged-out members, refresh TTLs
	multi := s.Client.Pipeline()
	multi.ZAdd(ctx, key, redis.Z{
		Score:  float64(ev.Time.UnixMilli()),
		Member: member,
	})
	cutoff := ev.Time.Add(-MaxAge).UnixMilli()
	multi.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
	multi.Expire(ctx, key, MaxAge+24*time.Hour)
	multi.SAdd(ctx, catKey, ev.Category)
	multi.Expire(ctx, catKey, MaxAge+24*time.Hour)
	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisEventLog) CountSince(ctx context.Context, scope, user, category string, since time.Time) (int, error) {
	key := redisEventPrefix + eventKey(scope, user, category)
	// ZCOUNT min is inclusive, matching the window-edge contract
	c, err := s.Client.ZCount(ctx, key, strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return int(c), nil
}

func (s *RedisEventLog) HasCategory(ctx context.Context, user, category string) (bool, error) {
	ok, err := s.Client.SIsMember(ctx, redisCategoryPrefix+user, category).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return ok, nil
}
