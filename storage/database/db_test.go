package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

func TestURL(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database = core.DBConfig{
		Host:          "db",
		Port:          "5432",
		Name:          "darasa",
		User:          "app",
		Password:      "s3cr3t",
		AdminUser:     "postgres",
		AdminPassword: "root",
	}

	tests := []struct {
		name       string
		dbName     string
		admin      bool
		disableTLS bool
		want       string
	}{
		{
			name:   "app user",
			dbName: "darasa",
			want:   "postgres://app:s3cr3t@db:5432/darasa?sslmode=require&timezone=utc",
		},
		{
			name:       "admin without tls",
			dbName:     "postgres",
			admin:      true,
			disableTLS: true,
			want:       "postgres://postgres:root@db:5432/postgres?sslmode=disable&timezone=utc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf.Database.DisableTLS = tt.disableTLS
			assert.Equal(t, tt.want, URL(tt.dbName, tt.admin, conf))
		})
	}
}

func TestMigrate(t *testing.T) {
	defer func(orig func(context.Context, string, *sql.DB, string, ...string) error) { runGoose = orig }(runGoose)

	var gotCmd, gotDir string
	var gotArgs []string
	runGoose = func(_ context.Context, command string, _ *sql.DB, dir string, args ...string) error {
		gotCmd, gotDir, gotArgs = command, dir, args
		if command == "down-to" {
			return errors.New("no migration 42")
		}
		return nil
	}
	db := sqlx.NewDb(nil, driverName)

	require.NoError(t, Migrate(context.Background(), db, ""))
	assert.Equal(t, "up", gotCmd)
	assert.Equal(t, migrationsDir, gotDir)
	assert.Empty(t, gotArgs)

	err := Migrate(context.Background(), db, "down-to", "42")
	assert.EqualError(t, err, "migrating database: no migration 42")
	assert.Equal(t, []string{"42"}, gotArgs)
}
