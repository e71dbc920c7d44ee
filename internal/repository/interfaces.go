// Package repository provides data access implementations.
package repository

import (
	"context"

	"github.com/jmylchreest/connectr/internal/models"
)

// UserDataRepository persists credential and token values by key.
// Get returns an empty string and no error for a missing key.
type UserDataRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*models.UserData, error)
	Namespace() string
}
