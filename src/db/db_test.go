package db

import (
	"log"
	"testing"
	"tourledger/src/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

func TestDB(t *testing.T) {
	gormDB, _ := NewMockDB()

	assert.Equal(t, "postgres", gormDB.Name())
}

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "postgres",
		Password: "password",
		Name:     "testdb",
		SSLMode:  "disable",
		TimeZone: "UTC",
	}
	assert.Equal(t, "host=localhost user=postgres password=password dbname=testdb port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}
