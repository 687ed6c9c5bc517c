package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "python:3.12-slim", cfg.Sandbox.Image)
	assert.Equal(t, "512m", cfg.Sandbox.Memory)
	assert.Equal(t, 128, cfg.Sandbox.PidsLimit)
	assert.Equal(t, 3*time.Minute, cfg.OverallDeadline())
	assert.Equal(t, time.Minute, cfg.GenerationTimeout())
	assert.Equal(t, 90*time.Second, cfg.ExecutionTimeout())
	assert.Equal(t, 10*time.Second, cfg.Slack())
	assert.Equal(t, 2, cfg.Analysis.MaxGenerationRetries)
	assert.Equal(t, 1, cfg.Analysis.MaxCycles)
}

func TestLoadFull(t *testing.T) {
	body := `
server:
  port: 9090
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: agent
  password: rahasia
  name: analyses
ai:
  model: gpt-4o
sandbox:
  image: python:3.11-slim
  memory: 1g
analysis:
  overallDeadlineSeconds: 120
  executionTimeoutSeconds: 45
auth:
  apiKeys:
    - key-one
    - key-two
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.Equal(t, "python:3.11-slim", cfg.Sandbox.Image)
	assert.Equal(t, "1g", cfg.Sandbox.Memory)
	assert.Equal(t, 2*time.Minute, cfg.OverallDeadline())
	assert.Equal(t, 45*time.Second, cfg.ExecutionTimeout())
	assert.Equal(t, []string{"key-one", "key-two"}, cfg.Auth.APIKeys)

	assert.Equal(t,
		"host=db.internal port=5432 user=agent password=rahasia dbname=analyses sslmode=disable",
		cfg.PostgresDSN())
}

func TestMySQLDSN(t *testing.T) {
	body := `
database:
  driver: mysql
  host: localhost
  port: 3306
  user: root
  password: secret
  name: agent
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t,
		"root:secret@tcp(localhost:3306)/agent?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.MySQLDSN())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("MONGO_URL", "mongodb://env-host:27017")

	cfg, err := Load(writeConfig(t, "ai:\n  apiKey: sk-from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.AI.APIKey)
	assert.Equal(t, "mongodb://env-host:27017", cfg.Database.URI)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
