package reputation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"gorm.io/gorm"
)

// Number of recent history entries hydrated onto a Record read from the
// database. The full audit trail stays queryable in the deltas table.
var HistoryLimit = 50

type reputationRow struct {
	gorm.Model
	UserID        string `gorm:"index:idx_reputation_user_scope,unique"`
	Scope         string `gorm:"index:idx_reputation_user_scope,unique"`
	Score         float64
	PermanentZero bool
}

func (reputationRow) TableName() string {
	return "reputation_records"
}

type reputationDeltaRow struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UserID    string `gorm:"index:idx_reputation_delta_user_scope"`
	Scope     string `gorm:"index:idx_reputation_delta_user_scope"`
	Amount    float64
	Reason    string
}

func (reputationDeltaRow) TableName() string {
	return "reputation_deltas"
}

// GormStore persists records in a relational database (sqlite or postgres).
// Per-key serialization is in-process: run one writer process per deployment,
// or front this store with a queue partitioned by user.
type GormStore struct {
	DB    *gorm.DB
	locks *xsync.MapOf[string, *sync.Mutex]

	subMu sync.Mutex
	subs  []ChangeFunc
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&reputationRow{}, &reputationDeltaRow{}, &corePenaltyRow{}); err != nil {
		return nil, err
	}
	return &GormStore{
		DB:    db,
		locks: xsync.NewMapOf[string, *sync.Mutex](),
	}, nil
}

func (s *GormStore) keyLock(key string) *sync.Mutex {
	lock, _ := s.locks.LoadOrCompute(key, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	return lock
}

func (s *GormStore) Subscribe(fn ChangeFunc) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *GormStore) notify(rec *Record, delta float64, reason string) {
	s.subMu.Lock()
	subs := s.subs
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(rec, delta, reason)
	}
}

// loadRow assumes the per-key lock is held.
func (s *GormStore) loadRow(ctx context.Context, user, scope string) (*reputationRow, error) {
	var row reputationRow
	err := s.DB.WithContext(ctx).Where("user_id = ? AND scope = ?", user, scope).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = reputationRow{UserID: user, Scope: scope, Score: DefaultScore}
		if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, err
		}
		return &row, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *GormStore) hydrate(ctx context.Context, row *reputationRow) (*Record, error) {
	var deltas []reputationDeltaRow
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND scope = ?", row.UserID, row.Scope).
		Order("id desc").Limit(HistoryLimit).Find(&deltas).Error
	if err != nil {
		return nil, err
	}
	rec := &Record{
		UserID:        row.UserID,
		Scope:         row.Scope,
		Score:         row.Score,
		PermanentZero: row.PermanentZero,
		UpdatedAt:     row.UpdatedAt,
	}
	// oldest first, matching the in-memory store
	for i := len(deltas) - 1; i >= 0; i-- {
		rec.History = append(rec.History, Delta{
			Amount: deltas[i].Amount,
			Reason: deltas[i].Reason,
			Time:   deltas[i].CreatedAt,
		})
	}
	return rec, nil
}

func (s *GormStore) GetScore(ctx context.Context, user, scope string) (*Record, error) {
	lock := s.keyLock(recordKey(user, scope))
	lock.Lock()
	defer lock.Unlock()
	row, err := s.loadRow(ctx, user, scope)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, row)
}

func (s *GormStore) ApplyDelta(ctx context.Context, user, scope string, delta float64, reason string) (*Record, error) {
	lock := s.keyLock(recordKey(user, scope))
	lock.Lock()
	defer lock.Unlock()

	row, err := s.loadRow(ctx, user, scope)
	if err != nil {
		return nil, err
	}
	if row.PermanentZero && delta > 0 {
		guardRejectCount.Inc()
		return s.hydrate(ctx, row)
	}
	row.Score = clampScore(row.Score + delta)
	if row.PermanentZero {
		row.Score = 0
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&reputationRow{}).Where("id = ?", row.ID).
			Updates(map[string]any{"score": row.Score}).Error; err != nil {
			return err
		}
		return tx.Create(&reputationDeltaRow{
			UserID: user,
			Scope:  scope,
			Amount: delta,
			Reason: reason,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	rec, err := s.hydrate(ctx, row)
	if err != nil {
		return nil, err
	}
	deltaAppliedCount.Inc()
	s.notify(rec, delta, reason)
	return rec, nil
}

func (s *GormStore) SetPermanentZero(ctx context.Context, user, scope, reason string) error {
	lock := s.keyLock(recordKey(user, scope))
	lock.Lock()
	defer lock.Unlock()

	row, err := s.loadRow(ctx, user, scope)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&reputationRow{}).Where("id = ?", row.ID).
			Updates(map[string]any{"score": 0.0, "permanent_zero": true}).Error; err != nil {
			return err
		}
		return tx.Create(&reputationDeltaRow{
			UserID: user,
			Scope:  scope,
			Amount: 0,
			Reason: "permanent-zero: " + reason,
		}).Error
	})
	if err != nil {
		return err
	}
	row.Score = 0
	row.PermanentZero = true
	rec, err := s.hydrate(ctx, row)
	if err != nil {
		return err
	}
	permanentZeroCount.Inc()
	s.notify(rec, 0, reason)
	return nil
}

func (s *GormStore) ForEach(ctx context.Context, fn func(rec *Record) error) error {
	var rows []reputationRow
	if err := s.DB.WithContext(ctx).FindInBatches(&rows, 500, func(tx *gorm.DB, batch int) error {
		for i := range rows {
			rec := &Record{
				UserID:        rows[i].UserID,
				Scope:         rows[i].Scope,
				Score:         rows[i].Score,
				PermanentZero: rows[i].PermanentZero,
				UpdatedAt:     rows[i].UpdatedAt,
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	}).Error; err != nil {
		return err
	}
	return nil
}
