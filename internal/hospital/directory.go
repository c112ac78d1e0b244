// Package hospital resolves a bill's provider name to billing contact details.
package hospital

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/normalize"
)

const unknownProvider = "Unknown Provider"

type directoryFile struct {
	Hospitals []struct {
		Name         string   `yaml:"name"`
		Aliases      []string `yaml:"aliases"`
		Address      string   `yaml:"address"`
		BillingEmail string   `yaml:"billing_email"`
		BillingPhone string   `yaml:"billing_phone"`
	} `yaml:"hospitals"`
}

// Directory is a name-keyed list of known billing contacts. Providers not
// in the directory resolve to their own name with empty contact fields.
// The zero value is an empty directory.
type Directory struct {
	entries map[string]collab.HospitalInfo
	log     zerolog.Logger
}

func NewDirectory(log zerolog.Logger) *Directory {
	return &Directory{
		entries: map[string]collab.HospitalInfo{},
		log:     log,
	}
}

// LoadDirectory reads a YAML directory from path.
func LoadDirectory(path string, log zerolog.Logger) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hospital directory: %w", err)
	}
	return ParseDirectory(data, log)
}

// ParseDirectory parses a YAML directory. Names and aliases are matched
// case-insensitively with whitespace collapsed.
func ParseDirectory(data []byte, log zerolog.Logger) (*Directory, error) {
	var f directoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse hospital directory: %w", err)
	}

	d := NewDirectory(log)
	for i, h := range f.Hospitals {
		if strings.TrimSpace(h.Name) == "" {
			return nil, fmt.Errorf("hospital directory: entry %d has no name", i)
		}
		info := collab.HospitalInfo{
			HospitalName: strings.TrimSpace(h.Name),
			Address:      strings.TrimSpace(h.Address),
			BillingEmail: strings.TrimSpace(h.BillingEmail),
			BillingPhone: strings.TrimSpace(h.BillingPhone),
		}
		for _, name := range append([]string{h.Name}, h.Aliases...) {
			key := normalize.NormalizeName(&name)
			if key == nil {
				continue
			}
			if prev, dup := d.entries[*key]; dup && prev.HospitalName != info.HospitalName {
				return nil, fmt.Errorf("hospital directory: %q maps to both %q and %q", name, prev.HospitalName, info.HospitalName)
			}
			d.entries[*key] = info
		}
	}
	return d, nil
}

// Len returns the number of distinct lookup keys.
func (d *Directory) Len() int { return len(d.entries) }

func (d *Directory) Lookup(_ context.Context, providerName *string) collab.HospitalInfo {
	key := normalize.NormalizeName(providerName)
	if key == nil {
		return collab.HospitalInfo{HospitalName: unknownProvider}
	}
	if info, ok := d.entries[*key]; ok {
		return info
	}
	d.log.Debug().Str("provider", *providerName).Msg("provider not in hospital directory")
	return collab.HospitalInfo{HospitalName: strings.TrimSpace(*providerName)}
}
