package postgres

import (
	"errors"
	"testing"

	"github.com/Layr-Labs/questboard/internal/config"
	"github.com/stretchr/testify/assert"
)

func Test_Postgres(t *testing.T) {
	t.Run("Should build a connection string", func(t *testing.T) {
		s, err := getPostgresConnectionString(&PostgresConfig{
			Host:       "localhost",
			Port:       5432,
			Username:   "quest",
			Password:   "secret",
			DbName:     "questboard",
			SchemaName: "board",
		})
		assert.Nil(t, err)
		assert.Equal(t, "host=localhost user=quest password=secret dbname=questboard port=5432 sslmode=disable TimeZone=UTC search_path=board", s)
	})
	t.Run("Should reject invalid ssl modes", func(t *testing.T) {
		_, err := getPostgresConnectionString(&PostgresConfig{Host: "localhost", SSLMode: "sometimes"})
		assert.NotNil(t, err)
	})
	t.Run("Should map database config", func(t *testing.T) {
		pg := PostgresConfigFromDbConfig(&config.DatabaseConfig{Host: "db", Port: 1, User: "u", DbName: "n", SSLMode: "require"})
		assert.Equal(t, "db", pg.Host)
		assert.Equal(t, "u", pg.Username)
		assert.Equal(t, "require", pg.SSLMode)
	})
	t.Run("IsDuplicateKeyError", func(t *testing.T) {
		assert.True(t, IsDuplicateKeyError(errors.New(`pq: duplicate key value violates unique constraint "quests_pkey"`)))
		assert.False(t, IsDuplicateKeyError(errors.New("connection refused")))
	})
}
