package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type OracleConfig struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	SID      string `json:"sid" yaml:"sid"`
}

func (c *OracleConfig) ConnectionString() string {
	return fmt.Sprintf("%s/%s@%s:%s/%s", c.Username, c.Password, c.Host, c.Port, c.SID)
}

func (c *OracleConfig) Validate() error {
	return validation.ValidateStruct(
		c,
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
		validation.Field(&c.Host, validation.Required, is.Host),
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.SID, validation.Required),
	)
}

var identifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_$#]*$`)

const (
	maxUserPrefix       = 20
	minStatementTimeout = 1
	minPoolTimeout      = 1
)

// SandboxConfig configures the throwaway users that run submissions. The
// admin account must be allowed to create, grant to and drop users.
// Timeouts are in milliseconds.
type SandboxConfig struct {
	Admin      OracleConfig `json:"admin" yaml:"admin"`
	Tablespace string       `json:"tablespace" yaml:"tablespace"`
	UserPrefix string       `json:"user_prefix" yaml:"user_prefix"`

	PoolMin     int `json:"pool_min" yaml:"pool_min"`
	PoolMax     int `json:"pool_max" yaml:"pool_max"`
	PoolTimeout int `json:"pool_timeout" yaml:"pool_timeout"`

	StatementTimeout int `json:"statement_timeout" yaml:"statement_timeout"`

	MaxRows   int `json:"max_rows" yaml:"max_rows"`
	MaxCols   int `json:"max_cols" yaml:"max_cols"`
	MaxTables int `json:"max_tables" yaml:"max_tables"`
}

func (c *SandboxConfig) Validate() error {
	if err := c.Admin.Validate(); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	return validation.ValidateStruct(
		c,
		validation.Field(&c.Tablespace, validation.Required, validation.Match(identifier)),
		validation.Field(&c.UserPrefix, validation.Length(1, maxUserPrefix), validation.Match(identifier)),
		validation.Field(&c.PoolMin, validation.Min(0), validation.Max(c.PoolMax)),
		validation.Field(&c.PoolMax, validation.Required, validation.Min(1)),
		validation.Field(&c.PoolTimeout, validation.Required, validation.Min(minPoolTimeout)),
		validation.Field(&c.StatementTimeout, validation.Required, validation.Min(minStatementTimeout)),
		validation.Field(&c.MaxRows, validation.Min(0)),
		validation.Field(&c.MaxCols, validation.Min(0)),
		validation.Field(&c.MaxTables, validation.Min(0)),
	)
}

func (c *SandboxConfig) PoolWait() time.Duration {
	return time.Duration(c.PoolTimeout) * time.Millisecond
}

func (c *SandboxConfig) CallTimeout() time.Duration {
	return time.Duration(c.StatementTimeout) * time.Millisecond
}

const (
	minFetchPeriod   = 100
	minReviewerCount = 0
)

// JudgeConfig controls how pending submissions are picked up. FetchPeriod
// is in milliseconds.
type JudgeConfig struct {
	FetchPeriod   int `json:"fetch_period" yaml:"fetch_period"`
	FetchLimit    int `json:"fetch_limit" yaml:"fetch_limit"`
	ReviewerCount int `json:"reviewer_count" yaml:"reviewer_count"`
}

func (c *JudgeConfig) Validate() error {
	return validation.ValidateStruct(
		c,
		validation.Field(&c.FetchPeriod, validation.Required, validation.Min(minFetchPeriod)),
		validation.Field(&c.FetchLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.ReviewerCount, validation.Min(minReviewerCount)),
	)
}

func (c *JudgeConfig) Period() time.Duration {
	return time.Duration(c.FetchPeriod) * time.Millisecond
}

type JudgesConfig struct {
	LoggerConfig zap.Config `json:"logger" yaml:"logger"`

	MainDBConfig OracleConfig  `json:"main_db" yaml:"main_db"`
	Sandbox      SandboxConfig `json:"sandbox" yaml:"sandbox"`
	Judge        JudgeConfig   `json:"judge" yaml:"judge"`

	MetricsAddress string `json:"metrics_address" yaml:"metrics_address"`
}

// Default returns the configuration every file is applied on top of.
func Default() JudgesConfig {
	return JudgesConfig{
		LoggerConfig: zap.NewProductionConfig(),
		Sandbox: SandboxConfig{
			Tablespace:       "USERS",
			UserPrefix:       "lsql_",
			PoolMin:          1,
			PoolMax:          4,
			PoolTimeout:      5000,
			StatementTimeout: 5000,
			MaxRows:          1000,
			MaxCols:          50,
			MaxTables:        50,
		},
		Judge: JudgeConfig{
			FetchPeriod:   1000,
			FetchLimit:    16,
			ReviewerCount: 4,
		},
	}
}

func (c *JudgesConfig) Validate() error {
	if err := c.MainDBConfig.Validate(); err != nil {
		return fmt.Errorf("main_db: %w", err)
	}
	if err := c.Sandbox.Validate(); err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	if err := c.Judge.Validate(); err != nil {
		return fmt.Errorf("judge: %w", err)
	}
	return validation.ValidateStruct(
		c,
		validation.Field(&c.MetricsAddress, is.DialString),
	)
}

func (c *JudgesConfig) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch ext := filepath.Ext(path); ext {
	case ".json":
		if err := c.loadFromJSON(data); err != nil {
			return err
		}
	case ".yaml", ".yml":
		if err := c.loadFromYAML(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown configuration file extension: %s", ext)
	}
	return c.Validate()
}

func (c *JudgesConfig) loadFromJSON(data []byte) error {
	return json.Unmarshal(data, c)
}

func (c *JudgesConfig) loadFromYAML(data []byte) error {
	return yaml.Unmarshal(data, c)
}

// DefaultFile is read when no configuration file is named.
const DefaultFile = "config.json"
