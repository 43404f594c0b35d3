package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of a client settings file:
//
//	provider: OpenAI
//	api_keys:
//	  OpenAI: sk-...
//	settings:
//	  model: gpt-4o-mini
//	  temperature: 0.3
//	selected_kbs: [01J...]
// fileSettings uses pointers so an explicit zero in the file is told
// apart from a missing key.
type fileSettings struct {
	Model       *string  `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
	Timeout     *int     `yaml:"timeout"`
	MaxRetries  *int     `yaml:"max_retries"`
	Agent       *string  `yaml:"agent"`
}

type fileConfig struct {
	Provider    string            `yaml:"provider"`
	APIKeys     map[string]string `yaml:"api_keys"`
	Settings    *fileSettings     `yaml:"settings"`
	SelectedKBs []string          `yaml:"selected_kbs"`
	SelectedDBs []string          `yaml:"selected_dbs"`
}

// LoadFile seeds the store from a YAML file. Fields left out of the file
// keep their current values.
func (s *Store) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}
	return s.LoadYAML(b)
}

func (s *Store) LoadYAML(b []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse settings file: %w", err)
	}

	cur := s.Snapshot()
	provider := cur.Provider
	if fc.Provider != "" {
		p, err := ParseProvider(fc.Provider)
		if err != nil {
			return err
		}
		provider = p
	}
	keys := cur.APIKeys
	for k, v := range fc.APIKeys {
		keys[k] = v
	}
	st := cur.Settings
	if fc.Settings != nil {
		st = mergeSettings(st, *fc.Settings)
	}

	if err := s.Save(provider, keys, st); err != nil {
		return err
	}
	if fc.SelectedKBs != nil {
		s.SelectKnowledgeBases(fc.SelectedKBs...)
	}
	if fc.SelectedDBs != nil {
		s.SelectDatabases(fc.SelectedDBs...)
	}
	return nil
}

// mergeSettings overlays the keys present in the file.
func mergeSettings(base Settings, over fileSettings) Settings {
	if over.Model != nil {
		base.Model = *over.Model
	}
	if over.Temperature != nil {
		base.Temperature = *over.Temperature
	}
	if over.MaxTokens != nil {
		base.MaxTokens = *over.MaxTokens
	}
	if over.Timeout != nil {
		base.Timeout = *over.Timeout
	}
	if over.MaxRetries != nil {
		base.MaxRetries = *over.MaxRetries
	}
	if over.Agent != nil {
		base.Agent = *over.Agent
	}
	return base
}
