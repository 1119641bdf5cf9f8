package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig holds the subset of connection settings that may be
// supplied via --config instead of flags, so a credential set can be
// kept in one place instead of repeated on every invocation.
type fileConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	TLS         bool   `yaml:"tls"`
	ExplicitTLS bool   `yaml:"explicit_tls"`
	Passive     *bool  `yaml:"passive"`
	SocksProxy  string `yaml:"socks_proxy"`
}

// loadConfig reads a YAML config file whose values applyConfig then
// uses as defaults; flags explicitly set by the user on the command
// line still win (the root command's pre-run hook runs after flag
// parsing, so it sets those flags again after applyConfig, since
// cobra/pflag write straight into the same variables).
func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyConfig(cfg *fileConfig) {
	if cfg.Host != "" {
		flagHost = cfg.Host
	}
	if cfg.Port != 0 {
		flagPort = cfg.Port
	}
	if cfg.User != "" {
		flagUser = cfg.User
	}
	if cfg.Password != "" {
		flagPassword = cfg.Password
	}
	flagTLS = flagTLS || cfg.TLS
	flagExplicitTLS = flagExplicitTLS || cfg.ExplicitTLS
	if cfg.Passive != nil {
		flagPassive = *cfg.Passive
	}
	if cfg.SocksProxy != "" {
		flagSocksProxy = cfg.SocksProxy
	}
}
