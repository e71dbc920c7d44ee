package models

import "strings"

// DefaultNamespace is the namespace used when none is configured.
const DefaultNamespace = "default"

// UserData is one persisted credential or token value. Keys are unique
// within a namespace, which lets several accounts share one database.
type UserData struct {
	BaseModel
	Namespace string `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_data_ns_key" json:"namespace"`
	Key       string `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_data_ns_key" json:"key"`
	Value     string `gorm:"type:text;not null" json:"-"`
}

// TableName returns the table name for user data.
func (UserData) TableName() string {
	return "user_data"
}

// Validate checks the model before it is written.
func (u *UserData) Validate() error {
	if strings.TrimSpace(u.Namespace) == "" {
		return ErrValidation{Field: "namespace", Message: ErrNamespaceRequired.Error()}
	}
	if strings.TrimSpace(u.Key) == "" {
		return ErrValidation{Field: "key", Message: ErrKeyRequired.Error()}
	}
	return nil
}
