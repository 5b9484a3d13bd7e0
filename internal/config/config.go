package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"dailies/internal/calendar"
	"dailies/internal/turnaround"
)

// Config models dailies.yml: studio identity, default alert settings, and
// the holiday table. The holiday table is curated data, maintained by
// editing this file for future years; it is deliberately not a computed
// floating-holiday algorithm.
type Config struct {
	Studio struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"studio"`
	Defaults struct {
		OrangeThreshold int    `yaml:"orange_threshold"`
		RedThreshold    int    `yaml:"red_threshold"`
		Rule            string `yaml:"rule"`
	} `yaml:"defaults"`
	Holidays map[int][]string `yaml:"holidays"`
}

// Load reads and validates config from a workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run with defaults or create it from 'dl settings show --template'", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "dailies.yml")
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Studio.ID == "" {
		return fmt.Errorf("config.studio.id is required")
	}
	if c.Defaults.OrangeThreshold < 1 || c.Defaults.OrangeThreshold > 30 {
		return fmt.Errorf("config.defaults.orange_threshold must be in [1,30]")
	}
	if c.Defaults.RedThreshold < 1 || c.Defaults.RedThreshold > 60 {
		return fmt.Errorf("config.defaults.red_threshold must be in [1,60]")
	}
	if !turnaround.ValidRule(turnaround.Rule(c.Defaults.Rule)) {
		return fmt.Errorf("config.defaults.rule must be 'business' or 'legacy'")
	}
	for year, dates := range c.Holidays {
		seen := map[string]bool{}
		for _, s := range dates {
			d, err := calendar.ParseDate(s)
			if err != nil {
				return fmt.Errorf("holidays[%d]: %w", year, err)
			}
			if d.Year != year {
				return fmt.Errorf("holidays[%d]: date %s is outside its year", year, s)
			}
			if seen[s] {
				return fmt.Errorf("holidays[%d]: duplicate date %s", year, s)
			}
			seen[s] = true
		}
	}
	return nil
}

// Calendar builds the immutable holiday calendar from the config table.
// Validate has already rejected malformed dates, so entries that still fail
// to parse are skipped rather than failing the whole table.
func (c *Config) Calendar() *calendar.Calendar {
	byYear := make(map[int][]calendar.Date, len(c.Holidays))
	for year, dates := range c.Holidays {
		for _, s := range dates {
			d, err := calendar.ParseDate(s)
			if err != nil {
				continue
			}
			byYear[year] = append(byYear[year], d)
		}
	}
	return calendar.New(byYear)
}

// Default returns the shipped Config for a studio id.
func Default(studioID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, studioID)), &cfg)
	cfg.Studio.ID = studioID
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(studioID string) string {
	return fmt.Sprintf(defaultTemplate, studioID)
}

// US federal holidays per year; weekend-observed shifts are intentionally
// absent since weekend exclusion already covers those days.
const defaultTemplate = `studio:
  id: %s
  name: ""

defaults:
  orange_threshold: 5
  red_threshold: 7
  rule: business

holidays:
  2024:
    - 2024-01-01
    - 2024-01-15
    - 2024-02-19
    - 2024-05-27
    - 2024-07-04
    - 2024-09-02
    - 2024-10-14
    - 2024-11-11
    - 2024-11-28
    - 2024-12-25
  2025:
    - 2025-01-01
    - 2025-01-20
    - 2025-02-17
    - 2025-05-26
    - 2025-07-04
    - 2025-09-01
    - 2025-10-13
    - 2025-11-11
    - 2025-11-27
    - 2025-12-25
  2026:
    - 2026-01-01
    - 2026-01-19
    - 2026-02-16
    - 2026-05-25
    - 2026-07-04
    - 2026-09-07
    - 2026-10-12
    - 2026-11-11
    - 2026-11-26
    - 2026-12-25
  2027:
    - 2027-01-01
    - 2027-01-18
    - 2027-02-15
    - 2027-05-31
    - 2027-07-04
    - 2027-09-06
    - 2027-10-11
    - 2027-11-11
    - 2027-11-25
    - 2027-12-25
  2028:
    - 2028-01-01
    - 2028-01-17
    - 2028-02-21
    - 2028-05-29
    - 2028-07-04
    - 2028-09-04
    - 2028-10-09
    - 2028-11-11
    - 2028-11-23
    - 2028-12-25
  2029:
    - 2029-01-01
    - 2029-01-15
    - 2029-02-19
    - 2029-05-28
    - 2029-07-04
    - 2029-09-03
    - 2029-10-08
    - 2029-11-11
    - 2029-11-22
    - 2029-12-25
  2030:
    - 2030-01-01
    - 2030-01-21
    - 2030-02-18
    - 2030-05-27
    - 2030-07-04
    - 2030-09-02
    - 2030-10-14
    - 2030-11-11
    - 2030-11-28
    - 2030-12-25
`
