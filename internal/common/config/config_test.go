package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("X_A", "va")
	in := []byte("a: ${X_A:da}\nb: ${X_B:db}")
	out := resolveEnv(in)
	assert.Contains(t, string(out), "a: va")
	assert.Contains(t, string(out), "b: db")
}

func TestLoadConfig(t *testing.T) {
	tmp := t.TempDir()
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	_ = os.Chdir(tmp)
	t.Setenv("MEDLINKX_CONFIG_DIR", "")
	t.Setenv("X_REDIS_ADDR", "10.0.0.5:6379")

	yaml := `
logger:
  level: debug
storage:
  type: redis
  redis:
    addr: ${X_REDIS_ADDR:localhost:6379}
access:
  normalize_user_ids: true
  super_admins: "root@medlinkx.io, ops@medlinkx.io,,"
apiserver:
  port: 9000
  jwt:
    secret_key: ${X_JWT_SECRET:0123456789abcdef0123456789abcdef}
    duration: 2h
`
	file := filepath.Join(tmp, DefaultFile)
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o644))

	cfg, path, err := LoadConfig(DefaultFile)
	require.NoError(t, err)
	realFile, _ := filepath.EvalSymlinks(file)
	realPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, realFile, realPath)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "10.0.0.5:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "medlinkx", cfg.Storage.Redis.Prefix)
	assert.True(t, cfg.Access.NormalizeUserIDs)
	assert.Equal(t, StringList{"root@medlinkx.io", "ops@medlinkx.io"}, cfg.Access.SuperAdmins)
	assert.Equal(t, 3, cfg.Access.MaxWriteRetries)
	assert.Equal(t, 9000, cfg.APIServer.Port)
	assert.Equal(t, 2*time.Hour, cfg.APIServer.JWT.Duration)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.APIServer.JWT.SecretKey)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadConfig_SuperAdminsAsSequence(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "seq.yaml")
	require.NoError(t, os.WriteFile(file, []byte("access:\n  super_admins:\n    - a@x.io\n    - ' b@x.io '\n"), 0o644))

	cfg, _, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, StringList{"a@x.io", "b@x.io"}, cfg.Access.SuperAdmins)
	// defaults kick in for everything left out
	assert.Equal(t, "disk", cfg.Storage.Type)
	assert.Equal(t, "./data", cfg.Storage.Disk.Path)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, path, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	assert.NotEmpty(t, path)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 5235, cfg.APIServer.Port)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	pg := DatabaseConfig{Type: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "medlinkx"}
	dsn, err := pg.GetDSN()
	assert.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/medlinkx?sslmode=disable", dsn)

	my := DatabaseConfig{Type: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", DBName: "medlinkx"}
	dsn, err = my.GetDSN()
	assert.NoError(t, err)
	assert.Contains(t, dsn, "u:p@tcp(db:3306)/medlinkx")

	lite := DatabaseConfig{Type: "sqlite", DBName: filepath.Join(t.TempDir(), "nested", "store.db")}
	dsn, err = lite.GetDSN()
	assert.NoError(t, err)
	assert.Equal(t, lite.DBName, dsn)
	_, statErr := os.Stat(filepath.Dir(lite.DBName))
	assert.NoError(t, statErr)

	_, err = (&DatabaseConfig{Type: "oracle"}).GetDSN()
	assert.Error(t, err)
}
