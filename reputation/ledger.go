package reputation

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Rolling window for core violation scoring.
var LedgerWindow = 90 * 24 * time.Hour

// CoreLedger is the global, cross-community penalty ledger. It is
// deliberately independent from community-scoped reputation records and
// from any community's local policy actions, so one community's rule-making
// cannot corrupt the globally shared trust signal.
//
// The global score is derived, not stored: 100 minus the sum of penalty
// points recorded within the rolling window, floored at zero.
type CoreLedger interface {
	AddPenalty(ctx context.Context, user string, points float64, reason string) error
	GlobalScore(ctx context.Context, user string) (float64, error)
}

type corePenalty struct {
	Points float64
	Reason string
	Time   time.Time
}

type MemCoreLedger struct {
	mu        sync.Mutex
	penalties map[string][]corePenalty
	// Now is the clock used for window math. Defaults to time.Now.
	Now func() time.Time
}

var _ CoreLedger = (*MemCoreLedger)(nil)

func NewMemCoreLedger() *MemCoreLedger {
	return &MemCoreLedger{
		penalties: make(map[string][]corePenalty),
		Now:       time.Now,
	}
}

func (l *MemCoreLedger) AddPenalty(ctx context.Context, user string, points float64, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.Now().Add(-LedgerWindow)
	kept := l.penalties[user][:0]
	for _, p := range l.penalties[user] {
		if !p.Time.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	l.penalties[user] = append(kept, corePenalty{Points: points, Reason: reason, Time: l.Now()})
	corePenaltyCount.Inc()
	return nil
}

func (l *MemCoreLedger) GlobalScore(ctx context.Context, user string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.Now().Add(-LedgerWindow)
	var sum float64
	for _, p := range l.penalties[user] {
		if !p.Time.Before(cutoff) {
			sum += p.Points
		}
	}
	score := 100 - sum
	if score < 0 {
		score = 0
	}
	return score, nil
}

type corePenaltyRow struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index:idx_core_penalty_user_time"`
	UserID    string    `gorm:"index:idx_core_penalty_user_time"`
	Points    float64
	Reason    string
}

func (corePenaltyRow) TableName() string {
	return "core_penalties"
}

type GormCoreLedger struct {
	DB *gorm.DB
	// Now is the clock used for window math. Defaults to time.Now.
	Now func() time.Time
}

var _ CoreLedger = (*GormCoreLedger)(nil)

func NewGormCoreLedger(db *gorm.DB) (*GormCoreLedger, error) {
	if err := db.AutoMigrate(&corePenaltyRow{}); err != nil {
		return nil, err
	}
	return &GormCoreLedger{DB: db, Now: time.Now}, nil
}

func (l *GormCoreLedger) AddPenalty(ctx context.Context, user string, points float64, reason string) error {
	err := l.DB.WithContext(ctx).Create(&corePenaltyRow{
		UserID: user,
		Points: points,
		Reason: reason,
	}).Error
	if err != nil {
		return err
	}
	corePenaltyCount.Inc()
	return nil
}

func (l *GormCoreLedger) GlobalScore(ctx context.Context, user string) (float64, error) {
	cutoff := l.Now().Add(-LedgerWindow)
	var sum float64
	err := l.DB.WithContext(ctx).Model(&corePenaltyRow{}).
		Where("user_id = ? AND created_at >= ?", user, cutoff).
		Select("COALESCE(SUM(points), 0)").Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	score := 100 - sum
	if score < 0 {
		score = 0
	}
	return score, nil
}
