package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// distributionFile is the on-disk shape of DISTRIBUTION_CONFIG_FILE
type distributionFile struct {
	Relay struct {
		Endpoint       string `yaml:"endpoint"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"relay"`
	Adapters struct {
		TimeoutSeconds int                          `yaml:"timeout_seconds"`
		Transport      map[string]string            `yaml:"transport"`
		Params         map[string]map[string]string `yaml:"params"`
	} `yaml:"adapters"`
	Callbacks struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"callbacks"`
	Caps struct {
		DefaultDaily    int  `yaml:"default_daily"`
		Serialize       bool `yaml:"serialize"`
		LockTTLSeconds  int  `yaml:"lock_ttl_seconds"`
		LockWaitSeconds int  `yaml:"lock_wait_seconds"`
	} `yaml:"caps"`
	Recording struct {
		ResponseMaxLength int `yaml:"response_max_length"`
		ReasonMaxLength   int `yaml:"reason_max_length"`
	} `yaml:"recording"`
}

// LoadDistributionFile overlays the YAML file at path onto cfg. Zero values in the file
// leave the corresponding setting untouched.
func LoadDistributionFile(path string, cfg *DistributionConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read distribution config file: %w", err)
	}

	var f distributionFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse distribution config file: %w", err)
	}

	if f.Relay.Endpoint != "" {
		cfg.RelayEndpoint = f.Relay.Endpoint
	}
	if f.Relay.TimeoutSeconds > 0 {
		cfg.RelayTimeout = time.Duration(f.Relay.TimeoutSeconds) * time.Second
	}
	if f.Adapters.TimeoutSeconds > 0 {
		cfg.AdapterTimeout = time.Duration(f.Adapters.TimeoutSeconds) * time.Second
	}
	if cfg.TransportModes == nil {
		cfg.TransportModes = map[string]string{}
	}
	for advType, mode := range f.Adapters.Transport {
		cfg.TransportModes[strings.ToLower(advType)] = strings.ToLower(mode)
	}
	if cfg.AdapterParams == nil {
		cfg.AdapterParams = map[string]map[string]string{}
	}
	for advType, params := range f.Adapters.Params {
		cfg.AdapterParams[strings.ToLower(advType)] = params
	}
	if f.Callbacks.TimeoutSeconds > 0 {
		cfg.CallbackTimeout = time.Duration(f.Callbacks.TimeoutSeconds) * time.Second
	}
	if f.Caps.DefaultDaily > 0 {
		cfg.DefaultDailyCap = f.Caps.DefaultDaily
	}
	if f.Caps.Serialize {
		cfg.SerializeCaps = true
	}
	if f.Caps.LockTTLSeconds > 0 {
		cfg.CapLockTTL = time.Duration(f.Caps.LockTTLSeconds) * time.Second
	}
	if f.Caps.LockWaitSeconds > 0 {
		cfg.CapLockWait = time.Duration(f.Caps.LockWaitSeconds) * time.Second
	}
	if f.Recording.ResponseMaxLength > 0 {
		cfg.ResponseMaxLength = f.Recording.ResponseMaxLength
	}
	if f.Recording.ReasonMaxLength > 0 {
		cfg.ReasonMaxLength = f.Recording.ReasonMaxLength
	}
	return nil
}
