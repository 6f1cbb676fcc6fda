package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	conn, err := Open(context.Background(), Driver("mysql"), "", DefaultPoolConfig())
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.Contains(t, err.Error(), "unsupported db driver")
}

func TestOpenSQLiteUsesSingleConnection(t *testing.T) {
	conn, err := Open(context.Background(), DriverSQLite, "file:dbtest?mode=memory", PoolConfig{MaxOpenConns: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	assert.Equal(t, 1, conn.Stats().MaxOpenConnections)
	var one int
	require.NoError(t, conn.QueryRowContext(context.Background(), "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}
