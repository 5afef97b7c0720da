package bootstrap

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundseg/internal/config"
	"groundseg/internal/logger"
)

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(config.PostgresConfig{
		Host:     "db",
		Port:     5432,
		User:     "groundseg",
		Password: "p@ss/word",
		DBName:   "tracking",
		SSLMode:  "disable",
	})
	assert.Equal(t, "postgres://groundseg:p%40ss%2Fword@db:5432/tracking?sslmode=disable", dsn)
}

func TestOptionalDatabases(t *testing.T) {
	dc := NewDatabaseConnector(&config.Config{}, logger.NopLogger())

	db, err := dc.InitPostgreSQL(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, db)

	client, err := dc.InitMongoDB(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestInitTracking_Memory(t *testing.T) {
	dc := NewDatabaseConnector(&config.Config{}, logger.NopLogger())

	store, conns, err := dc.InitTracking(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.Empty(t, conns.Closers())
}

func TestBaseShutdown_RunsEveryStep(t *testing.T) {
	b := NewBase(&config.Config{}, logger.NopLogger())

	var order []string
	err := b.Shutdown(context.Background(),
		Closer{Name: "first", Close: func(context.Context) error {
			order = append(order, "first")
			return stderrors.New("stuck")
		}},
		Closer{Name: "skipped"},
		Closer{Name: "second", Close: func(context.Context) error {
			order = append(order, "second")
			return nil
		}},
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "first: stuck")
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestConnectionsClosers_Nil(t *testing.T) {
	var c *Connections
	assert.Nil(t, c.Closers())
}
