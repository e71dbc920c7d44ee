// Package migrations versions the credential store schema. Each migration
// runs in its own transaction together with the row that records it.
package migrations

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"gorm.io/gorm"
)

// Migration is one schema step. Down may be nil for steps that cannot be
// reversed.
type Migration struct {
	Version     string
	Description string
	Up          func(tx *gorm.DB) error
	Down        func(tx *gorm.DB) error
}

// MigrationRecord is a row in schema_migrations.
type MigrationRecord struct {
	ID          uint      `gorm:"primarykey"`
	Version     string    `gorm:"uniqueIndex;not null"`
	Description string    `gorm:"not null"`
	AppliedAt   time.Time `gorm:"not null"`
}

func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// MigrationStatus reports whether a registered migration has been applied.
type MigrationStatus struct {
	Version     string     `json:"version"`
	Description string     `json:"description"`
	Applied     bool       `json:"applied"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
}

// ErrNothingToRollback is returned by Down when no migration is applied.
var ErrNothingToRollback = errors.New("no applied migrations")

// Migrator applies registered migrations in version order.
type Migrator struct {
	db     *gorm.DB
	logger *slog.Logger
	steps  []Migration
}

// NewMigrator returns a Migrator for db. A nil logger uses slog.Default.
func NewMigrator(db *gorm.DB, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, logger: logger}
}

// RegisterAll adds migrations and keeps the set sorted by version.
func (m *Migrator) RegisterAll(steps []Migration) {
	m.steps = append(m.steps, steps...)
	slices.SortStableFunc(m.steps, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, step := range m.steps {
		if _, ok := done[step.Version]; ok {
			continue
		}
		m.logger.InfoContext(ctx, "applying migration",
			slog.String("version", step.Version),
			slog.String("description", step.Description))

		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := step.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{
				Version:     step.Version,
				Description: step.Description,
				AppliedAt:   time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return ran, fmt.Errorf("applying migration %s: %w", step.Version, err)
		}
		ran++
	}
	return ran, nil
}

// Down reverts the most recently applied migration and returns it.
func (m *Migrator) Down(ctx context.Context) (*Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	var last MigrationRecord
	err := m.db.WithContext(ctx).Order("version DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNothingToRollback
	}
	if err != nil {
		return nil, fmt.Errorf("reading last migration: %w", err)
	}

	i := slices.IndexFunc(m.steps, func(s Migration) bool { return s.Version == last.Version })
	if i < 0 {
		return nil, fmt.Errorf("migration %s is applied but not registered", last.Version)
	}
	step := m.steps[i]
	if step.Down == nil {
		return nil, fmt.Errorf("migration %s cannot be rolled back", step.Version)
	}

	m.logger.InfoContext(ctx, "rolling back migration",
		slog.String("version", step.Version),
		slog.String("description", step.Description))

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := step.Down(tx); err != nil {
			return err
		}
		return tx.Where("version = ?", step.Version).Delete(&MigrationRecord{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("rolling back migration %s: %w", step.Version, err)
	}
	return &step, nil
}

// Status lists registered migrations in version order.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, len(m.steps))
	for i, step := range m.steps {
		out[i] = MigrationStatus{Version: step.Version, Description: step.Description}
		if at, ok := done[step.Version]; ok {
			out[i].Applied = true
			out[i].AppliedAt = &at
		}
	}
	return out, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return nil
}

// applied maps applied versions to the time they ran.
func (m *Migrator) applied(ctx context.Context) (map[string]time.Time, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	var rows []MigrationRecord
	if err := m.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	done := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		done[r.Version] = r.AppliedAt
	}
	return done, nil
}
