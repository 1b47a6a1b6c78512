package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one registered scraper in the sources file.
type SourceConfig struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"` // social_page | listing_site | city_calendar | tonight_listing
	BaseURL  string   `yaml:"base_url"`
	Enabled  bool     `yaml:"enabled"`
	Policies []string `yaml:"policies"` // discovery and/or tonight
	// PageURLs are extra unstructured pages handed to the extraction
	// pipeline instead of a structured adapter.
	PageURLs []string `yaml:"page_urls"`
}

type SourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources reads the YAML scraper registry.
func LoadSources(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}

	var f SourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing sources file: %w", err)
	}

	var enabled []SourceConfig
	for _, s := range f.Sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled, nil
}
