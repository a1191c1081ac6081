package db

import (
	"github.com/shiftdirector/shiftdirector/settings"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB is the shared database handle opened by Open.
var DB *gorm.DB

func Open() error {
	var err error
	settingsDict := settings.LoadSettings()
	DB, err = gorm.Open(postgres.Open(settingsDict.ConnectionString), &gorm.Config{})
	if err != nil {
		return err
	}

	return nil
}

func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
