package postgresql

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second * 2
)

// Initialize opens the db session and provisions the schema for the given
// models. AutoMigrate is idempotent, so restarting against an already
// provisioned database is safe.
func Initialize(connStr string, models []any) (db *gorm.DB, err error) {
	retryTicker := time.NewTicker(connectBackoff)
	defer retryTicker.Stop()

	// retry connect
	for range connectAttempts {
		db, err = gorm.Open(postgres.Open(connStr), &gorm.Config{})
		if err == nil {
			break
		}
		<-retryTicker.C
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err = db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("failed to provision schema: %w", err)
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDb, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDb.Close()
}
