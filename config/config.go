// Package config reads the collector's YAML configuration: the main config
// file, the site list, and the per-site credential files. All of it is
// owned by external tooling and read-only here.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ecomwatch/collector/extract"
	"github.com/ecomwatch/collector/store"
)

// Site is one catalog to collect.
type Site struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	URL          string            `yaml:"url"`
	Active       bool              `yaml:"active"`
	RequiresAuth bool              `yaml:"requires_auth"`
	// Template selects the extraction strategy: "generic" (default) or
	// "prestashop".
	Template  string            `yaml:"template"`
	MaxPages  int               `yaml:"max_pages"`
	Overrides extract.Overrides `yaml:"selectors"`
}

// Credential is a site's login, resolved from the credential directory.
type Credential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Schedule configures the daily trigger.
type Schedule struct {
	Enabled bool `yaml:"enabled"`
	// Time is the daily fire time as HH:MM. Default: 09:00.
	Time string `yaml:"time"`
}

// Config is the main configuration file.
type Config struct {
	// DataDir holds sites.yaml, credentials/ and the audit log. Default: data.
	DataDir  string           `yaml:"data_dir"`
	Database store.Descriptor `yaml:"database"`
	Schedule Schedule         `yaml:"schedule"`
	// Listen is the HTTP API address. Default: 127.0.0.1:8750.
	Listen string `yaml:"listen"`
}

func (c *Config) defaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Schedule.Time == "" {
		c.Schedule.Time = "09:00"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8750"
	}
}

// Load reads the main config file. A missing file yields the defaults, not
// an error: the collector runs fine on a bare site list.
func Load(path string) (*Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// fall through to defaults
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.defaults()
	return &c, nil
}

// LoadSites reads the site list from <DataDir>/sites.yaml. A missing file
// is an empty list.
func (c *Config) LoadSites() ([]Site, error) {
	path := filepath.Join(c.DataDir, "sites.yaml")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var sites []Site
	if err := yaml.Unmarshal(data, &sites); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return sites, nil
}

// LoadCredential resolves a site's login from
// <DataDir>/credentials/<id>.yaml. Absence is (nil, nil), not an error:
// the orchestrator decides what a missing credential means.
func (c *Config) LoadCredential(siteID string) (*Credential, error) {
	path := filepath.Join(c.DataDir, "credentials", siteID+".yaml")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read credential %s: %w", siteID, err)
	}

	var cred Credential
	if err := yaml.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("config: parse credential %s: %w", siteID, err)
	}
	return &cred, nil
}

// LogDir is where the audit log lives.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}
