package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/student-record-api/pkg/config"
)

func TestDSNEscapesCredentials(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "app",
		Password: "p@ss word",
		Name:     "student_record",
		SSLMode:  "disable",
	})

	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/student_record?sslmode=disable&timezone=UTC", dsn)
}
