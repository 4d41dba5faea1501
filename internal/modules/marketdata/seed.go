package marketdata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document loaded by the import command
type SeedFile struct {
	Universe     []UniverseMember `yaml:"universe"`
	Bars         []Bar            `yaml:"bars"`
	Statuses     []Status         `yaml:"statuses"`
	Fundamentals []Fundamental    `yaml:"fundamentals"`
}

// SeedSummary counts imported records
type SeedSummary struct {
	Universe     int `json:"universe"`
	Bars         int `json:"bars"`
	Statuses     int `json:"statuses"`
	Fundamentals int `json:"fundamentals"`
}

// LoadSeedFile parses a seed document from disk
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses a seed document. Universe members default to active.
func ParseSeed(data []byte) (*SeedFile, error) {
	var raw struct {
		Universe []struct {
			Symbol string `yaml:"symbol"`
			Name   string `yaml:"name"`
			Active *bool  `yaml:"active"`
		} `yaml:"universe"`
		Bars         []Bar         `yaml:"bars"`
		Statuses     []Status      `yaml:"statuses"`
		Fundamentals []Fundamental `yaml:"fundamentals"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	seed := &SeedFile{
		Bars:         raw.Bars,
		Statuses:     raw.Statuses,
		Fundamentals: raw.Fundamentals,
	}
	for _, m := range raw.Universe {
		if m.Symbol == "" {
			return nil, fmt.Errorf("universe entry without symbol")
		}
		active := true
		if m.Active != nil {
			active = *m.Active
		}
		seed.Universe = append(seed.Universe, UniverseMember{Symbol: m.Symbol, Name: m.Name, Active: active})
	}
	return seed, nil
}

// Import writes every section of the seed into the store
func (s *Store) Import(seed *SeedFile) (SeedSummary, error) {
	if err := s.SaveUniverse(seed.Universe); err != nil {
		return SeedSummary{}, err
	}
	if err := s.SaveBars(seed.Bars); err != nil {
		return SeedSummary{}, err
	}
	if err := s.SaveStatuses(seed.Statuses); err != nil {
		return SeedSummary{}, err
	}
	if err := s.SaveFundamentals(seed.Fundamentals); err != nil {
		return SeedSummary{}, err
	}

	summary := SeedSummary{
		Universe:     len(seed.Universe),
		Bars:         len(seed.Bars),
		Statuses:     len(seed.Statuses),
		Fundamentals: len(seed.Fundamentals),
	}
	s.log.Info().
		Int("universe", summary.Universe).
		Int("bars", summary.Bars).
		Int("statuses", summary.Statuses).
		Int("fundamentals", summary.Fundamentals).
		Msg("Market data imported")
	return summary, nil
}
