package util

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"RackPower/internal/recorder"
)

var DefaultConfigPath = "/etc/rackpower/config.yaml"

type Config struct {
	Region struct {
		URL                   string `yaml:"URL"`
		APIToken              string `yaml:"APIToken"`
		RequestTimeoutSeconds int    `yaml:"RequestTimeoutSeconds"`
	} `yaml:"Region"`

	Power struct {
		ListenAddress             string `yaml:"ListenAddress"`
		ChangeTimeoutSeconds      int    `yaml:"ChangeTimeoutSeconds"`
		QueryRetryIntervalSeconds []int  `yaml:"QueryRetryIntervalSeconds"`
		MaxConcurrentQueries      int    `yaml:"MaxConcurrentQueries"`
		SweepIntervalSeconds      int    `yaml:"SweepIntervalSeconds"`
	} `yaml:"Power"`

	Drivers struct {
		IpmitoolPath        string `yaml:"IpmitoolPath"`
		VirshPath           string `yaml:"VirshPath"`
		WolBroadcastAddress string `yaml:"WolBroadcastAddress"`
	} `yaml:"Drivers"`

	Recorder recorder.Config `yaml:"Recorder"`

	Log struct {
		Level string `yaml:"Level"`
		File  string `yaml:"File"`
	} `yaml:"Log"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyConfigDefaults(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %v", err)
	}

	return config, nil
}

func applyConfigDefaults(config *Config) {
	if config.Power.ListenAddress == "" {
		config.Power.ListenAddress = "0.0.0.0:10512"
	}
	if config.Power.ChangeTimeoutSeconds == 0 {
		config.Power.ChangeTimeoutSeconds = 300
	}
	if config.Power.MaxConcurrentQueries == 0 {
		config.Power.MaxConcurrentQueries = 5
	}
	if config.Power.SweepIntervalSeconds == 0 {
		config.Power.SweepIntervalSeconds = 180
	}
	if config.Region.RequestTimeoutSeconds == 0 {
		config.Region.RequestTimeoutSeconds = 30
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func validateConfig(config *Config) error {
	if config.Region.URL == "" {
		return fmt.Errorf("Region.URL cannot be empty")
	}
	if config.Power.ChangeTimeoutSeconds <= 0 {
		return fmt.Errorf("Power.ChangeTimeoutSeconds must be positive")
	}
	if config.Power.MaxConcurrentQueries <= 0 {
		return fmt.Errorf("Power.MaxConcurrentQueries must be positive")
	}
	if config.Power.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("Power.SweepIntervalSeconds must be positive")
	}
	for _, s := range config.Power.QueryRetryIntervalSeconds {
		if s <= 0 {
			return fmt.Errorf("Power.QueryRetryIntervalSeconds entries must be positive")
		}
	}
	return nil
}

// RetryPolicy converts the configured wait seconds into durations; an
// empty configuration means the engine default applies.
func (c *Config) RetryPolicy() []time.Duration {
	if len(c.Power.QueryRetryIntervalSeconds) == 0 {
		return nil
	}
	policy := make([]time.Duration, len(c.Power.QueryRetryIntervalSeconds))
	for i, s := range c.Power.QueryRetryIntervalSeconds {
		policy[i] = time.Duration(s) * time.Second
	}
	return policy
}

func PrintConfig(cfg *Config) {
	log.Info("RackPower Configuration:")
	log.Info("----------------------------------------")
	log.Info("Region:")
	log.Infof("  URL: %s", cfg.Region.URL)
	log.Info("  APIToken: ********")
	log.Infof("  RequestTimeoutSeconds: %d", cfg.Region.RequestTimeoutSeconds)
	log.Info("Power:")
	log.Infof("  ListenAddress: %s", cfg.Power.ListenAddress)
	log.Infof("  ChangeTimeoutSeconds: %d", cfg.Power.ChangeTimeoutSeconds)
	log.Infof("  QueryRetryIntervalSeconds: %v", cfg.Power.QueryRetryIntervalSeconds)
	log.Infof("  MaxConcurrentQueries: %d", cfg.Power.MaxConcurrentQueries)
	log.Infof("  SweepIntervalSeconds: %d", cfg.Power.SweepIntervalSeconds)
	log.Info("Drivers:")
	log.Infof("  IpmitoolPath: %s", cfg.Drivers.IpmitoolPath)
	log.Infof("  VirshPath: %s", cfg.Drivers.VirshPath)
	log.Infof("  WolBroadcastAddress: %s", cfg.Drivers.WolBroadcastAddress)
	log.Info("Recorder:")
	log.Infof("  Type: %s", cfg.Recorder.Type)
	log.Info("Log:")
	log.Infof("  Level: %s", cfg.Log.Level)
	log.Infof("  File: %s", cfg.Log.File)
}
