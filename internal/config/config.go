package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`

	// Design records. The JSON files under RecordsDir are always written;
	// RecordBackend adds an index mirror.
	RecordsDir    string `envconfig:"RECORDS_DIR" default:"examples/testing_1"`
	RecordBackend string `envconfig:"RECORD_BACKEND" default:"file"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"./data/records.db"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisURL      string `envconfig:"REDIS_URL"`

	// Analysis pipeline
	ProjectDirName  string `envconfig:"PROJECT_DIR_NAME" default:"tokamak_psp_2025"`
	Notebook        string `envconfig:"NOTEBOOK" default:"AOE_tokamaker.ipynb"`
	AnalysisCommand string `envconfig:"ANALYSIS_COMMAND" default:"jupyter"`
	ResultsSubdir   string `envconfig:"RESULTS_SUBDIR" default:"examples/testing_1"`

	// Geometry
	SafetyMargin float64 `envconfig:"SAFETY_MARGIN" default:"0.5"`
	VesselWall   float64 `envconfig:"VESSEL_WALL" default:"0.04"`
	RandomSeed   uint64  `envconfig:"RANDOM_SEED"`

	// Operator auth; empty hash disables it.
	JWTSecret            string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	OperatorPasswordHash string `envconfig:"OPERATOR_PASSWORD_HASH"`
}

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.RecordBackend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("RECORD_BACKEND=postgres needs DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown RECORD_BACKEND %q", c.RecordBackend)
	}
	if c.SafetyMargin < 0 || c.VesselWall < 0 {
		return fmt.Errorf("SAFETY_MARGIN and VESSEL_WALL must not be negative")
	}
	return nil
}
