package mysql

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 3306, User: "ledger", Password: "secret", DBName: "treasury"}
	assert.Equal(t, "ledger:secret@tcp(db:3306)/treasury?charset=utf8mb4&parseTime=True&loc=Local", cfg.DSN())
}

func TestConfigRetriesDefaults(t *testing.T) {
	n, wait := (&Config{}).retries()
	assert.Equal(t, 10, n)
	assert.Equal(t, 2*time.Second, wait)

	n, wait = (&Config{ConnectRetries: 3, RetryInterval: time.Millisecond}).retries()
	assert.Equal(t, 3, n)
	assert.Equal(t, time.Millisecond, wait)
}

func TestOpenWithExistingConnection(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client, err := Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}),
		Config{ConnectRetries: 1, MaxOpenConns: 4, LogLevel: "silent"}, nil)
	require.NoError(t, err)

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	assert.Equal(t, 4, sqlDB.Stats().MaxOpenConnections)
}
