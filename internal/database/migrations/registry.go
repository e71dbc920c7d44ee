package migrations

import (
	"github.com/jmylchreest/connectr/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
//   - 001: user_data key/value table for credentials and tokens
func AllMigrations() []Migration {
	return []Migration{
		migration001UserData(),
	}
}

func migration001UserData() Migration {
	return Migration{
		Version:     "001",
		Description: "Create user_data table",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.UserData{})
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.UserData{})
		},
	}
}
