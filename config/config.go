package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/cloudx-io/ccgauction/mechanism"
	"github.com/cloudx-io/ccgauction/solver"
)

const (
	EnvLogLevel         = "CCGAUCTION_LOG_LEVEL"
	EnvTimeLimit        = "CCGAUCTION_TIME_LIMIT"
	EnvMaxIterations    = "CCGAUCTION_MAX_ITERATIONS"
	EnvAcceptSuboptimal = "CCGAUCTION_ACCEPT_SUBOPTIMAL"
)

// Config gathers solver, mechanism and logging settings.
type Config struct {
	Solver    solver.Params
	Mechanism mechanism.Params
	LogLevel  zerolog.Level
}

type fileConfig struct {
	Solver struct {
		MaxCoefficient       float64 `toml:"max_coefficient"`
		TimeLimit            string  `toml:"time_limit"`
		NodeLimit            int     `toml:"node_limit"`
		AcceptSuboptimal     bool    `toml:"accept_suboptimal"`
		IntegralityTolerance float64 `toml:"integrality_tolerance"`
		FeasibilityTolerance float64 `toml:"feasibility_tolerance"`
	} `toml:"solver"`
	CCG struct {
		Epsilon             float64 `toml:"epsilon"`
		PinTolerance        float64 `toml:"pin_tolerance"`
		StagnationTolerance float64 `toml:"stagnation_tolerance"`
		MaxIterations       int     `toml:"max_iterations"`
	} `toml:"ccg"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Solver:    solver.DefaultParams(),
		Mechanism: mechanism.DefaultParams(),
		LogLevel:  zerolog.InfoLevel,
	}
}

// Load reads a TOML file over the defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	return build(meta, raw)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return build(meta, raw)
}

func build(meta toml.MetaData, raw fileConfig) (Config, error) {
	cfg := Default()

	if meta.IsDefined("solver", "max_coefficient") {
		cfg.Solver.MaxCoefficient = raw.Solver.MaxCoefficient
	}
	if meta.IsDefined("solver", "time_limit") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Solver.TimeLimit))
		if err != nil {
			return Config{}, fmt.Errorf("parse solver.time_limit: %w", err)
		}
		cfg.Solver.TimeLimit = d
	}
	if meta.IsDefined("solver", "node_limit") {
		cfg.Solver.NodeLimit = raw.Solver.NodeLimit
	}
	if meta.IsDefined("solver", "accept_suboptimal") {
		cfg.Solver.AcceptSuboptimal = raw.Solver.AcceptSuboptimal
	}
	if meta.IsDefined("solver", "integrality_tolerance") {
		cfg.Solver.IntegralityTolerance = raw.Solver.IntegralityTolerance
	}
	if meta.IsDefined("solver", "feasibility_tolerance") {
		cfg.Solver.FeasibilityTolerance = raw.Solver.FeasibilityTolerance
	}

	if meta.IsDefined("ccg", "epsilon") {
		cfg.Mechanism.Epsilon = raw.CCG.Epsilon
	}
	if meta.IsDefined("ccg", "pin_tolerance") {
		cfg.Mechanism.PinTolerance = raw.CCG.PinTolerance
	}
	if meta.IsDefined("ccg", "stagnation_tolerance") {
		cfg.Mechanism.StagnationTolerance = raw.CCG.StagnationTolerance
	}
	if meta.IsDefined("ccg", "max_iterations") {
		cfg.Mechanism.MaxIterations = raw.CCG.MaxIterations
	}

	if meta.IsDefined("log", "level") {
		level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw.Log.Level)))
		if err != nil {
			return Config{}, fmt.Errorf("parse log.level: %w", err)
		}
		cfg.LogLevel = level
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Mechanism.Solver = cfg.Solver
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() (Config, error) {
	cfg := Default()
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Mechanism.Solver = cfg.Solver
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if raw := strings.TrimSpace(os.Getenv(EnvLogLevel)); raw != "" {
		level, err := zerolog.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return fmt.Errorf("invalid value for %s: %s", EnvLogLevel, raw)
		}
		cfg.LogLevel = level
	}
	if raw := strings.TrimSpace(os.Getenv(EnvTimeLimit)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %s (must be a duration)", EnvTimeLimit, raw)
		}
		cfg.Solver.TimeLimit = d
	}
	if raw := strings.TrimSpace(os.Getenv(EnvMaxIterations)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %s (must be a valid integer)", EnvMaxIterations, raw)
		}
		cfg.Mechanism.MaxIterations = n
	}
	if raw := strings.TrimSpace(os.Getenv(EnvAcceptSuboptimal)); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %s (must be a boolean)", EnvAcceptSuboptimal, raw)
		}
		cfg.Solver.AcceptSuboptimal = v
	}
	return nil
}

// Validate rejects settings the solver or mechanisms cannot work with.
func (c Config) Validate() error {
	if c.Solver.MaxCoefficient <= 0 {
		return fmt.Errorf("solver.max_coefficient must be positive, got %g", c.Solver.MaxCoefficient)
	}
	if c.Solver.TimeLimit < 0 {
		return fmt.Errorf("solver.time_limit must not be negative, got %s", c.Solver.TimeLimit)
	}
	if c.Solver.NodeLimit < 0 {
		return fmt.Errorf("solver.node_limit must not be negative, got %d", c.Solver.NodeLimit)
	}
	if c.Solver.IntegralityTolerance <= 0 || c.Solver.IntegralityTolerance >= 0.5 {
		return fmt.Errorf("solver.integrality_tolerance must be in (0, 0.5), got %g", c.Solver.IntegralityTolerance)
	}
	if c.Mechanism.Epsilon < 0 {
		return fmt.Errorf("ccg.epsilon must not be negative, got %g", c.Mechanism.Epsilon)
	}
	if c.Mechanism.PinTolerance < 0 {
		return fmt.Errorf("ccg.pin_tolerance must not be negative, got %g", c.Mechanism.PinTolerance)
	}
	if c.Mechanism.StagnationTolerance < 0 {
		return fmt.Errorf("ccg.stagnation_tolerance must not be negative, got %g", c.Mechanism.StagnationTolerance)
	}
	if c.Mechanism.MaxIterations < 0 {
		return fmt.Errorf("ccg.max_iterations must not be negative, got %d", c.Mechanism.MaxIterations)
	}
	return nil
}

// WithLogger hands the logger to every component and aligns the payment
// programs' solver settings with the winner determination ones.
func (c Config) WithLogger(logger zerolog.Logger) Config {
	logger = logger.Level(c.LogLevel)
	c.Solver.Logger = logger.With().Str("component", "solver").Logger()
	c.Mechanism.Logger = logger.With().Str("component", "mechanism").Logger()
	c.Mechanism.Solver = c.Solver
	return c
}
