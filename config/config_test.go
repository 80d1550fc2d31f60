package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const jsonConfig = `{
	"logger": {"level": "debug", "encoding": "console", "outputPaths": ["stderr"], "errorOutputPaths": ["stderr"]},
	"main_db": {"username": "judge", "password": "secret", "host": "db.example.com", "port": "1521", "sid": "XE"},
	"sandbox": {
		"admin": {"username": "system", "password": "oracle", "host": "10.0.0.5", "port": "1521", "sid": "XE"},
		"tablespace": "EXERCISES",
		"pool_max": 8,
		"statement_timeout": 2500
	},
	"judge": {"fetch_period": 500, "reviewer_count": 2},
	"metrics_address": "localhost:9090"
}`

const yamlConfig = `
logger:
  level: warn
  encoding: json
  outputPaths: [stdout]
  errorOutputPaths: [stderr]
main_db:
  username: judge
  password: secret
  host: localhost
  port: "1521"
  sid: XE
sandbox:
  admin:
    username: system
    password: oracle
    host: localhost
    port: "1521"
    sid: XE
  user_prefix: judge_
  max_rows: 10
judge:
  fetch_limit: 4
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromJSON(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.LoadFromFile(writeFile(t, "judges.json", jsonConfig)))

	assert.Equal(t, zap.DebugLevel, cfg.LoggerConfig.Level.Level())
	assert.Equal(t, "judge/secret@db.example.com:1521/XE", cfg.MainDBConfig.ConnectionString())
	assert.Equal(t, "system/oracle@10.0.0.5:1521/XE", cfg.Sandbox.Admin.ConnectionString())
	assert.Equal(t, "EXERCISES", cfg.Sandbox.Tablespace)
	assert.Equal(t, 8, cfg.Sandbox.PoolMax)
	assert.Equal(t, 2500*time.Millisecond, cfg.Sandbox.CallTimeout())
	// untouched options keep their defaults
	assert.Equal(t, "lsql_", cfg.Sandbox.UserPrefix)
	assert.Equal(t, 5*time.Second, cfg.Sandbox.PoolWait())
	assert.Equal(t, 500*time.Millisecond, cfg.Judge.Period())
	assert.Equal(t, 16, cfg.Judge.FetchLimit)
}

func TestLoadFromYAML(t *testing.T) {
	for _, name := range []string{"judges.yaml", "judges.yml"} {
		cfg := Default()
		require.NoError(t, cfg.LoadFromFile(writeFile(t, name, yamlConfig)), name)

		assert.Equal(t, zap.WarnLevel, cfg.LoggerConfig.Level.Level())
		assert.Equal(t, "json", cfg.LoggerConfig.Encoding)
		assert.Equal(t, "judge_", cfg.Sandbox.UserPrefix)
		assert.Equal(t, 10, cfg.Sandbox.MaxRows)
		assert.Equal(t, 4, cfg.Judge.FetchLimit)
		assert.Equal(t, "USERS", cfg.Sandbox.Tablespace)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := Default()
	err := cfg.LoadFromFile(writeFile(t, "judges.toml", "a = 1"))
	assert.EqualError(t, err, "unknown configuration file extension: .toml")

	cfg = Default()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.json")))

	cfg = Default()
	assert.Error(t, cfg.LoadFromFile(writeFile(t, "broken.json", "{")))
}

func validConfig(t *testing.T) JudgesConfig {
	t.Helper()
	cfg := Default()
	require.NoError(t, cfg.LoadFromFile(writeFile(t, "judges.json", jsonConfig)))
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *JudgesConfig)
	}{
		{"main db host", func(c *JudgesConfig) { c.MainDBConfig.Host = "not a host" }},
		{"admin port", func(c *JudgesConfig) { c.Sandbox.Admin.Port = "99999" }},
		{"admin password", func(c *JudgesConfig) { c.Sandbox.Admin.Password = "" }},
		{"tablespace", func(c *JudgesConfig) { c.Sandbox.Tablespace = "users; DROP USER x" }},
		{"user prefix characters", func(c *JudgesConfig) { c.Sandbox.UserPrefix = "1abc" }},
		{"user prefix length", func(c *JudgesConfig) { c.Sandbox.UserPrefix = "a_very_long_user_prefix" }},
		{"pool max", func(c *JudgesConfig) { c.Sandbox.PoolMax = 0 }},
		{"pool min above max", func(c *JudgesConfig) { c.Sandbox.PoolMin = 9 }},
		{"statement timeout", func(c *JudgesConfig) { c.Sandbox.StatementTimeout = 0 }},
		{"negative row cap", func(c *JudgesConfig) { c.Sandbox.MaxRows = -1 }},
		{"fetch period", func(c *JudgesConfig) { c.Judge.FetchPeriod = 10 }},
		{"fetch limit", func(c *JudgesConfig) { c.Judge.FetchLimit = 0 }},
		{"reviewers", func(c *JudgesConfig) { c.Judge.ReviewerCount = -1 }},
		{"metrics address", func(c *JudgesConfig) { c.MetricsAddress = "nowhere" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := validConfig(t)
	cfg.Sandbox.UserPrefix = ""
	cfg.MetricsAddress = ""
	assert.NoError(t, cfg.Validate(), "empty optional fields are valid")
}
