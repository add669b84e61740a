package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadLLMConfigYAML parses an LLMConfig from YAML bytes. The config file
// format mirrors the yaml tags on LLMConfig/FallbackPolicy/PrefixRule:
// fallback_policies, providers, prefix_rules.
func LoadLLMConfigYAML(data []byte) (*LLMConfig, error) {
	var cfg LLMConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	return &cfg, nil
}

// LoadLLMConfigFile reads and parses an LLMConfig from a YAML file on disk.
func LoadLLMConfigFile(path string) (*LLMConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return LoadLLMConfigYAML(data)
}

// NewPolicyManagerFromConfig builds a PolicyManager from the fallback
// policies declared in cfg.
func NewPolicyManagerFromConfig(cfg *LLMConfig) *PolicyManager {
	pm := NewPolicyManager()
	if cfg != nil {
		pm.Update(cfg.FallbackPolicies)
	}
	return pm
}
