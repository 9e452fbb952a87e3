package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// localitiesFile is the shape of a standalone high-density localities file.
type localitiesFile struct {
	HighDensity []string `yaml:"high_density"`
}

// Localities merges the inline high-density locality list with the
// standalone file, if one is configured. Duplicates are harmless; the
// strategy selector normalizes and de-duplicates.
func (c StrategyConfig) Localities() ([]string, error) {
	out := append([]string(nil), c.HighDensityLocalities...)
	if c.LocalitiesFile == "" {
		return out, nil
	}

	data, err := os.ReadFile(c.LocalitiesFile)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read localities file %s", c.LocalitiesFile)
	}
	var f localitiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "config: parse localities file %s", c.LocalitiesFile)
	}
	return append(out, f.HighDensity...), nil
}
