package main

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	BaseURL        string   `koanf:"base_url"`
	Username       string   `koanf:"username"`
	Password       string   `koanf:"password"`
	Rooms          []string `koanf:"rooms"`
	AutoJoin       bool     `koanf:"auto_join"`
	OnlyFirstMatch bool     `koanf:"only_first_match"`
	Raw            bool     `koanf:"raw"`
	Debug          bool     `koanf:"debug"`
}

func loadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	setDefault(k, "auto_join", true)
}

func applyEnvOverrides(k *koanf.Koanf) {
	if v := os.Getenv("DUBTRACK_BASE_URL"); v != "" {
		k.Set("base_url", v)
	}
	if v := os.Getenv("DUBTRACK_USERNAME"); v != "" {
		k.Set("username", v)
	}
	if v := os.Getenv("DUBTRACK_PASSWORD"); v != "" {
		k.Set("password", v)
	}
}

func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
