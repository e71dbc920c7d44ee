package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmylchreest/connectr/internal/models"
)

// userDataRepository implements UserDataRepository using GORM.
type userDataRepository struct {
	db        *gorm.DB
	namespace string
}

// NewUserDataRepository creates a repository scoped to namespace. An empty
// namespace selects models.DefaultNamespace.
func NewUserDataRepository(db *gorm.DB, namespace string) UserDataRepository {
	if namespace == "" {
		namespace = models.DefaultNamespace
	}
	return &userDataRepository{db: db, namespace: namespace}
}

// Namespace returns the namespace rows are scoped to.
func (r *userDataRepository) Namespace() string {
	return r.namespace
}

// Get retrieves the value stored under key.
func (r *userDataRepository) Get(ctx context.Context, key string) (string, error) {
	var row models.UserData
	err := r.db.WithContext(ctx).
		Where(r.byKey(key)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("getting user data %q: %w", key, err)
	}
	return row.Value, nil
}

// Set creates or replaces the value stored under key.
func (r *userDataRepository) Set(ctx context.Context, key, value string) error {
	row := &models.UserData{Namespace: r.namespace, Key: key, Value: value}
	if err := row.Validate(); err != nil {
		return fmt.Errorf("validating user data: %w", err)
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("setting user data %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *userDataRepository) Delete(ctx context.Context, key string) error {
	err := r.db.WithContext(ctx).
		Where(r.byKey(key)).
		Delete(&models.UserData{}).Error
	if err != nil {
		return fmt.Errorf("deleting user data %q: %w", key, err)
	}
	return nil
}

// List returns every row in the namespace ordered by key.
func (r *userDataRepository) List(ctx context.Context) ([]*models.UserData, error) {
	var rows []*models.UserData
	if err := r.db.WithContext(ctx).
		Where("namespace = ?", r.namespace).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing user data: %w", err)
	}
	return rows, nil
}

// byKey builds a map condition so GORM quotes the column names; KEY is
// reserved in MySQL.
func (r *userDataRepository) byKey(key string) map[string]any {
	return map[string]any{"namespace": r.namespace, "key": key}
}
