package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/database"
)

// GormSink persists records into service__session_tracing_t.
type GormSink struct {
	db *gorm.DB
}

// NewGormSink creates a sink on db. The table must exist; see
// database.Manager.CreateStructure or Migrate.
func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

// Migrate creates the tracing table if needed.
func (s *GormSink) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&database.SessionTrace{})
}

// Save upserts rec.
func (s *GormSink) Save(ctx context.Context, rec core.SessionRecord) error {
	row, err := toTrace(rec)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.SessionID, err)
	}
	return nil
}

// Get loads the record for sessionID.
func (s *GormSink) Get(ctx context.Context, sessionID string) (core.SessionRecord, error) {
	var row database.SessionTrace
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return core.SessionRecord{}, err
	}
	return fromTrace(row)
}

func toTrace(rec core.SessionRecord) (database.SessionTrace, error) {
	history, err := json.Marshal(rec.SessionHistory)
	if err != nil {
		return database.SessionTrace{}, fmt.Errorf("encode session history: %w", err)
	}
	state, err := json.Marshal(rec.FinalState)
	if err != nil {
		return database.SessionTrace{}, fmt.Errorf("encode final state: %w", err)
	}
	return database.SessionTrace{
		SessionID:      rec.SessionID,
		Request:        rec.Request,
		Status:         string(rec.Status),
		Error:          rec.Error,
		SessionHistory: string(history),
		FinalState:     string(state),
		StartedAt:      rec.StartedAt,
		FinishedAt:     rec.FinishedAt,
	}, nil
}

func fromTrace(row database.SessionTrace) (core.SessionRecord, error) {
	rec := core.SessionRecord{
		SessionID:  row.SessionID,
		Request:    row.Request,
		Status:     core.SessionStatus(row.Status),
		Error:      row.Error,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
	}
	if row.SessionHistory != "" {
		if err := json.Unmarshal([]byte(row.SessionHistory), &rec.SessionHistory); err != nil {
			return rec, fmt.Errorf("decode session history: %w", err)
		}
	}
	if row.FinalState != "" {
		if err := json.Unmarshal([]byte(row.FinalState), &rec.FinalState); err != nil {
			return rec, fmt.Errorf("decode final state: %w", err)
		}
	}
	return rec, nil
}
