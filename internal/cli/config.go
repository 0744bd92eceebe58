package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/card-recovery/internal/worker"
	"github.com/ChuLiYu/card-recovery/pkg/types"
)

// Config represents the complete configuration structure
// Maps config file fields through YAML tags
type Config struct {
	Search struct {
		Algorithm   string `yaml:"algorithm"`
		InfixWidth  int    `yaml:"infix_width"`
		CardLength  int    `yaml:"card_length"`
		Workers     int    `yaml:"workers"` // <= 0 means hardware parallelism
		Mode        string `yaml:"mode"`
		ReportEvery int64  `yaml:"report_every"`
	} `yaml:"search"`

	Inputs struct {
		Hash       string `yaml:"hash"`
		BIN        string `yaml:"bin"`
		LastDigits string `yaml:"last_digits"`
	} `yaml:"inputs"`

	Outputs struct {
		CardNumber string `yaml:"card_number"`
		Result     string `yaml:"result"`
		Stats      string `yaml:"stats"`
	} `yaml:"outputs"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

// defaultConfig mirrors configs/default.yaml so the tool runs without a config file.
func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Search.Algorithm = "sha1"
	cfg.Search.InfixWidth = 6
	cfg.Search.CardLength = 16
	cfg.Search.Mode = string(types.ModeExhaustive)
	cfg.Search.ReportEvery = worker.DefaultReportEvery

	cfg.Inputs.Hash = "files/hash.txt"
	cfg.Inputs.BIN = "files/bin.txt"
	cfg.Inputs.LastDigits = "files/last_digits.txt"

	cfg.Outputs.CardNumber = "files/card_number.txt"
	cfg.Outputs.Result = "files/result.txt"
	cfg.Outputs.Stats = "files/stats.csv"

	cfg.Metrics.Port = 9090
	return cfg
}

// loadConfig reads path on top of the defaults. Keys missing from the file keep
// their default value.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return cfg, nil
}

// loadConfigOrDefault tolerates a missing file unless the user named it explicitly.
func loadConfigOrDefault(path string, explicit bool) (*Config, error) {
	cfg, err := loadConfig(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		log.Debug("Config file not found, using defaults", "path", path)
		return defaultConfig(), nil
	}
	return cfg, err
}

// parseWorkers turns the --workers flag into a worker count. Anything that is
// not a positive integer selects hardware parallelism (0).
func parseWorkers(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
