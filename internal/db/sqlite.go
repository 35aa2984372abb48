package db

import (
	"log"

	"github.com/glebarez/sqlite"
	"github.com/relaylab/mfa-relay/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the SQLite database and runs migrations.
func InitDB(dbPath string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := gdb.AutoMigrate(
		&models.Project{},
		&models.User{},
		&models.Session{},
		&models.MailboxAccount{},
	); err != nil {
		return nil, err
	}

	log.Printf("💾 Database ready at %s", dbPath)
	return gdb, nil
}
