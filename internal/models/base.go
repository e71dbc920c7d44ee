// Package models defines the GORM models of the credential store.
package models

import (
	"crypto/rand"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// ULID is a row identifier stored as its 26 character text form.
type ULID ulid.ULID

// NewULID returns a ULID for the current time.
func NewULID() ULID {
	return ULID(ulid.MustNew(ulid.Now(), rand.Reader))
}

func (u ULID) String() string { return ulid.ULID(u).String() }

// IsZero reports whether u is unset.
func (u ULID) IsZero() bool { return u == ULID{} }

// Time returns the timestamp component.
func (u ULID) Time() time.Time { return ulid.Time(ulid.ULID(u).Time()) }

// MarshalText encodes u in its canonical form.
func (u ULID) MarshalText() ([]byte, error) { return ulid.ULID(u).MarshalText() }

// UnmarshalText decodes the canonical form.
func (u *ULID) UnmarshalText(b []byte) error { return (*ulid.ULID)(u).UnmarshalText(b) }

// Value stores the zero ULID as NULL.
func (u ULID) Value() (driver.Value, error) {
	if u.IsZero() {
		return nil, nil
	}
	return u.String(), nil
}

// Scan accepts NULL, string and []byte columns.
func (u *ULID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*u = ULID{}
		return nil
	case string:
		return u.scanText(v)
	case []byte:
		return u.scanText(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ULID", src)
	}
}

func (u *ULID) scanText(s string) error {
	if s == "" {
		*u = ULID{}
		return nil
	}
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return fmt.Errorf("scanning ULID %q: %w", s, err)
	}
	*u = ULID(id)
	return nil
}

// GormDataType is the column type used by AutoMigrate.
func (ULID) GormDataType() string { return "varchar(26)" }

// BaseModel carries the ID and timestamps shared by all rows. There is no
// soft delete: a deleted credential must be gone.
type BaseModel struct {
	ID        ULID      `gorm:"primarykey;type:varchar(26)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an ID to new rows.
func (b *BaseModel) BeforeCreate(*gorm.DB) error {
	if b.ID.IsZero() {
		b.ID = NewULID()
	}
	return nil
}
