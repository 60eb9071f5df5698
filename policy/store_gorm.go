package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type policyRow struct {
	gorm.Model
	PolicyID       string `gorm:"uniqueIndex:idx_policy_scope_id"`
	Scope          string `gorm:"uniqueIndex:idx_policy_scope_id;index"`
	Name           string
	Category       string
	Occurrences    int
	TimeWindowMs   int64
	ChannelsJSON   string
	InitialJSON    string
	EscalationJSON string
	Enabled        bool
}

func (policyRow) TableName() string {
	return "policy_definitions"
}

// GormDefinitionStore persists policy definitions in SQL. Ladder and channel
// lists are small and read whole, so they are stored as JSON columns instead
// of join tables.
type GormDefinitionStore struct {
	DB *gorm.DB
}

var _ DefinitionStore = (*GormDefinitionStore)(nil)

func NewGormDefinitionStore(db *gorm.DB) (*GormDefinitionStore, error) {
	if err := db.AutoMigrate(&policyRow{}); err != nil {
		return nil, fmt.Errorf("policy schema migration failed: %w", err)
	}
	return &GormDefinitionStore{DB: db}, nil
}

func rowFromDefinition(def *Definition) (*policyRow, error) {
	channels, err := json.Marshal(def.Condition.Channels)
	if err != nil {
		return nil, err
	}
	initial, err := json.Marshal(def.InitialAction)
	if err != nil {
		return nil, err
	}
	escalations, err := json.Marshal(def.Escalations)
	if err != nil {
		return nil, err
	}
	return &policyRow{
		PolicyID:       def.ID,
		Scope:          def.Scope,
		Name:           def.Name,
		Category:       def.Condition.Category,
		Occurrences:    def.Condition.Occurrences,
		TimeWindowMs:   def.Condition.TimeWindow.Milliseconds(),
		ChannelsJSON:   string(channels),
		InitialJSON:    string(initial),
		EscalationJSON: string(escalations),
		Enabled:        def.Enabled,
	}, nil
}

func (r *policyRow) toDefinition() (*Definition, error) {
	def := &Definition{
		ID:    r.PolicyID,
		Scope: r.Scope,
		Name:  r.Name,
		Condition: Condition{
			Category:    r.Category,
			Occurrences: r.Occurrences,
			TimeWindow:  time.Duration(r.TimeWindowMs) * time.Millisecond,
		},
		Enabled: r.Enabled,
	}
	if r.ChannelsJSON != "" {
		if err := json.Unmarshal([]byte(r.ChannelsJSON), &def.Condition.Channels); err != nil {
			return nil, fmt.Errorf("parsing policy channels: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(r.InitialJSON), &def.InitialAction); err != nil {
		return nil, fmt.Errorf("parsing policy initial action: %w", err)
	}
	if r.EscalationJSON != "" {
		if err := json.Unmarshal([]byte(r.EscalationJSON), &def.Escalations); err != nil {
			return nil, fmt.Errorf("parsing policy escalations: %w", err)
		}
	}
	return def, nil
}

func (s *GormDefinitionStore) Create(ctx context.Context, def *Definition) error {
	row, err := rowFromDefinition(def)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Create(row).Error
}

func (s *GormDefinitionStore) Update(ctx context.Context, def *Definition) error {
	row, err := rowFromDefinition(def)
	if err != nil {
		return err
	}
	var existing policyRow
	err = s.DB.WithContext(ctx).Where("scope = ? AND policy_id = ?", def.Scope, def.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	return s.DB.WithContext(ctx).Save(row).Error
}

func (s *GormDefinitionStore) Delete(ctx context.Context, scope, id string) error {
	res := s.DB.WithContext(ctx).Where("scope = ? AND policy_id = ?", scope, id).Delete(&policyRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormDefinitionStore) Get(ctx context.Context, scope, id string) (*Definition, error) {
	var row policyRow
	err := s.DB.WithContext(ctx).Where("scope = ? AND policy_id = ?", scope, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return row.toDefinition()
}

func (s *GormDefinitionStore) List(ctx context.Context, scope string) ([]*Definition, error) {
	var rows []policyRow
	if err := s.DB.WithContext(ctx).Where("scope = ?", scope).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*Definition, 0, len(rows))
	for i := range rows {
		def, err := rows[i].toDefinition()
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}
