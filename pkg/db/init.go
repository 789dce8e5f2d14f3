package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func InitialiseDatabase() (*gorm.DB, error) {
	return InitialiseDatabaseAt("data/attendance.db")
}

// InitialiseDatabaseAt opens the database at the given path and migrates the
// schema. TranslateError is required: the redemption engine relies on unique
// constraint violations surfacing as gorm.ErrDuplicatedKey.
func InitialiseDatabaseAt(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %s", err.Error())
	}

	db.AutoMigrate(&Department{}, &User{}, &Course{}, &AuthSession{}, &AttendanceSession{}, &AttendanceRecord{})
	return db, nil
}
