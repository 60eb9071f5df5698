package reputation

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemStore is an in-process store, suitable for tests and single-node
// deployments. Read-modify-write is serialized with one mutex per
// (user, scope) key; concurrent messages from the same user never race on
// the score.
type MemStore struct {
	records *xsync.MapOf[string, *Record]
	locks   *xsync.MapOf[string, *sync.Mutex]

	subMu sync.Mutex
	subs  []ChangeFunc
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		records: xsync.NewMapOf[string, *Record](),
		locks:   xsync.NewMapOf[string, *sync.Mutex](),
	}
}

func (s *MemStore) keyLock(key string) *sync.Mutex {
	lock, _ := s.locks.LoadOrCompute(key, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	return lock
}

func (s *MemStore) Subscribe(fn ChangeFunc) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *MemStore) notify(rec *Record, delta float64, reason string) {
	s.subMu.Lock()
	subs := s.subs
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(rec, delta, reason)
	}
}

// getOrCreate assumes the per-key lock is held.
func (s *MemStore) getOrCreate(user, scope string) *Record {
	key := recordKey(user, scope)
	rec, ok := s.records.Load(key)
	if !ok {
		rec = &Record{
			UserID:    user,
			Scope:     scope,
			Score:     DefaultScore,
			UpdatedAt: time.Now(),
		}
		s.records.Store(key, rec)
	}
	return rec
}

func copyRecord(rec *Record) *Record {
	out := *rec
	out.History = append([]Delta(nil), rec.History...)
	return &out
}

func (s *MemStore) GetScore(ctx context.Context, user, scope string) (*Record, error) {
	lock := s.keyLock(recordKey(user, scope))
	lock.Lock()
	defer lock.Unlock()
	return copyRecord(s.getOrCreate(user, scope)), nil
}

func (s *MemStore) ApplyDelta(ctx context.Context, user, scope string, delta float64, reason string) (*Record, error) {
	lock := s.keyLock(recordKey(user, scope))
	lock.Lock()
	rec := s.getOrCreate(user, scope)
	if rec.PermanentZero && delta > 0 {
		// permanent zero is monotonic; raise attempts are an expected guard
		out := copyRecord(rec)
		lock.Unlock()
		guardRejectCount.Inc()
		return out, nil
	}
	rec.Score = clampScore(rec.Score + delta)
	if rec.PermanentZero {
		rec.Score = 0
	}
	rec.History = append(rec.History, Delta{Amount: delta, Reason: reason, Time: time.Now()})
	rec.UpdatedAt = time.Now()
	out := copyRecord(rec)
	lock.Unlock()

	deltaAppliedCount.Inc()
	s.notify(out, delta, reason)
	return out, nil
}

func (s *MemStore) SetPermanentZero(ctx context.Context, user, scope, reason string) error {
	lock := s.keyLock(recordKey(user, scope))
	lock.Lock()
	rec := s.getOrCreate(user, scope)
	rec.PermanentZero = true
	rec.Score = 0
	rec.History = append(rec.History, Delta{Amount: 0, Reason: "permanent-zero: " + reason, Time: time.Now()})
	rec.UpdatedAt = time.Now()
	out := copyRecord(rec)
	lock.Unlock()

	permanentZeroCount.Inc()
	s.notify(out, 0, reason)
	return nil
}

func (s *MemStore) ForEach(ctx context.Context, fn func(rec *Record) error) error {
	var outerErr error
	s.records.Range(func(key string, _ *Record) bool {
		lock := s.keyLock(key)
		lock.Lock()
		rec, ok := s.records.Load(key)
		var snapshot *Record
		if ok {
			snapshot = copyRecord(rec)
		}
		lock.Unlock()
		if snapshot == nil {
			return true
		}
		if err := fn(snapshot); err != nil {
			outerErr = err
			return false
		}
		return true
	})
	return outerErr
}
