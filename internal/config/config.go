package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Runner struct {
		QuestionWindow string `yaml:"question_window"`
		TickInterval   string `yaml:"tick_interval"`
		MaxReplays     int    `yaml:"max_replays"`
		AttemptTTL     string `yaml:"attempt_ttl"`
	} `yaml:"runner"`
	Placement struct {
		PassRatio   float64 `yaml:"pass_ratio"`
		QuestionTTL string  `yaml:"question_ttl"`
		SessionTTL  string  `yaml:"session_ttl"`
	} `yaml:"placement"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
