// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config loads the node configuration from a YAML file with
// command line overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"gitlab.com/mimblenet/mimbled/corelog"
	"gitlab.com/mimblenet/mimbled/types/chaincfg"
)

const (
	defaultConfigFilename = "mimbled.yaml"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultMaxPoolWeight  = 1_000_000
)

// NodeConfig holds the chain and pool settings.
type NodeConfig struct {
	Net           string `yaml:"net" long:"net" description:"Network to run on {mainnet, testnet, simnet}"`
	DataDir       string `yaml:"data_dir" long:"datadir" description:"Directory to store chain data"`
	LogLevel      string `yaml:"log_level" long:"loglevel" description:"Logging level {trace, debug, info, warn, error}"`
	InMemory      bool   `yaml:"in_memory" long:"inmemory" description:"Keep all chain state in memory, nothing is persisted"`
	MaxPoolWeight uint64 `yaml:"max_pool_weight" long:"maxpoolweight" description:"Total transaction weight the pool may hold"`
}

// Config is the top level mimbled configuration.
type Config struct {
	ConfigFile string         `yaml:"-" short:"C" long:"configfile" description:"Path to configuration file"`
	ShowHelp   bool           `yaml:"-" short:"h" long:"help" description:"Show this help message"`
	Node       NodeConfig     `yaml:"node" group:"node" namespace:"node"`
	LogConfig  corelog.Config `yaml:"log_config"`
}

// Default returns the configuration the node runs with when nothing is
// specified.
func Default() *Config {
	return &Config{
		ConfigFile: defaultConfigFilename,
		Node: NodeConfig{
			Net:           "mainnet",
			DataDir:       defaultDataDirname,
			LogLevel:      defaultLogLevel,
			MaxPoolWeight: defaultMaxPoolWeight,
		},
		LogConfig: corelog.Config{}.Default(),
	}
}

// Load builds the effective configuration: defaults, then the YAML
// config file if present, then command line flags on top.
func Load(args []string) (*Config, error) {
	cfg := Default()

	// A first pass picks up an explicit -C without disturbing defaults.
	preCfg := *cfg
	preParser := flags.NewParser(&preCfg, flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := loadFile(preCfg.ConfigFile, cfg); err != nil {
		return nil, err
	}

	parser := flags.NewParser(cfg, flags.Default&^flags.HelpFlag)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if cfg.ShowHelp {
		parser.WriteHelp(os.Stderr)
		os.Exit(0)
	}

	if _, err := cfg.NetParams(); err != nil {
		return nil, err
	}
	if _, err := cfg.ZerologLevel(); err != nil {
		return nil, err
	}
	cfg.Node.DataDir = filepath.Clean(cfg.Node.DataDir)
	return cfg, nil
}

// loadFile overlays the YAML file at path onto cfg.  A missing file at
// the default location is not an error.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == defaultConfigFilename {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// NetParams resolves the configured network name.
func (c *Config) NetParams() (*chaincfg.Params, error) {
	switch c.Node.Net {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	}
	return nil, fmt.Errorf("unknown network %q", c.Node.Net)
}

// ZerologLevel resolves the configured log level name.
func (c *Config) ZerologLevel() (zerolog.Level, error) {
	switch c.Node.LogLevel {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", c.Node.LogLevel)
}
