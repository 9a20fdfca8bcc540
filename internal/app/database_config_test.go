package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/menuguard/internal/database"
	"github.com/charlesng35/menuguard/internal/models"
)

func TestDatabaseConnection(t *testing.T) {
	require.Equal(t, database.Config{Driver: "sqlite", Path: "./data/x.sqlite"},
		DatabaseConfig{Path: " ./data/x.sqlite "}.Connection())

	pg := DatabaseConfig{
		Driver:   "PostgreSQL",
		Postgres: DBAuthConfig{Host: "db", Port: 5433, Database: "perms", Username: "svc", Password: "pw"},
		MySQL:    DBAuthConfig{Host: "ignored"},
	}.Connection()
	require.Equal(t, database.Config{Driver: "postgres", Host: "db", Port: 5433, Name: "perms", User: "svc", Password: "pw"}, pg)

	my := DatabaseConfig{Driver: "mysql", MySQL: DBAuthConfig{Host: "mysql", Database: "perms", Username: "svc"}}.Connection()
	require.Equal(t, "mysql", my.Driver)
	require.Equal(t, "mysql", my.Host)

	require.Equal(t, "oracle", DatabaseConfig{Driver: "oracle"}.Connection().Driver)
}

func TestOpenDatabaseSeedsWhenAsked(t *testing.T) {
	dir := t.TempDir()

	db, err := OpenDatabase(DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "seeded.sqlite"), Seed: true})
	require.NoError(t, err)
	t.Cleanup(func() { CloseDatabase(db) })

	var count int64
	require.NoError(t, db.Model(&models.Role{}).Count(&count).Error)
	require.EqualValues(t, 3, count)

	bare, err := OpenDatabase(DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "bare.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { CloseDatabase(bare) })

	require.NoError(t, bare.Model(&models.Role{}).Count(&count).Error)
	require.Zero(t, count)

	_, err = OpenDatabase(DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}
