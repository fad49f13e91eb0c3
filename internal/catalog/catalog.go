// Package catalog holds the static boss definitions: respawn interval
// bounds, location metadata, and display attributes. The catalog is loaded
// once at startup (from YAML or the embedded default) and never mutated.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Boss describes one trackable boss type.
type Boss struct {
	Name              string   `yaml:"name" json:"name"`
	MinMinutes        int      `yaml:"minMinutes" json:"minMinutes"`
	MaxMinutes        int      `yaml:"maxMinutes" json:"maxMinutes"`
	Locations         []string `yaml:"locations" json:"locations"`
	HasLocationChoice bool     `yaml:"hasLocationChoice" json:"hasLocationChoice"`
	Color             string   `yaml:"color" json:"color"`
	Image             string   `yaml:"image,omitempty" json:"image,omitempty"`
}

// ColorValue returns the 24-bit RGB integer for the boss display color.
func (b Boss) ColorValue() int {
	hex := strings.TrimPrefix(b.Color, "#")
	value, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0xFF0000
	}
	return int(value)
}

// DefaultLocation returns the first catalog location for the boss.
func (b Boss) DefaultLocation() string {
	if len(b.Locations) == 0 {
		return ""
	}
	return b.Locations[0]
}

type Catalog struct {
	bosses []Boss
	byName map[string]int
}

type catalogFile struct {
	Bosses []Boss `yaml:"bosses"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// LoadFile parses a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Bosses) == 0 {
		return nil, fmt.Errorf("parse catalog: no bosses defined")
	}
	byName := make(map[string]int, len(file.Bosses))
	for i := range file.Bosses {
		boss := &file.Bosses[i]
		boss.Name = strings.TrimSpace(boss.Name)
		if boss.Name == "" {
			return nil, fmt.Errorf("catalog entry %d: missing name", i)
		}
		if _, dup := byName[boss.Name]; dup {
			return nil, fmt.Errorf("catalog entry %q: duplicate name", boss.Name)
		}
		if boss.MinMinutes <= 0 || boss.MaxMinutes < boss.MinMinutes {
			return nil, fmt.Errorf("catalog entry %q: invalid respawn bounds %d..%d", boss.Name, boss.MinMinutes, boss.MaxMinutes)
		}
		if len(boss.Locations) == 0 {
			return nil, fmt.Errorf("catalog entry %q: at least one location is required", boss.Name)
		}
		if boss.HasLocationChoice && len(boss.Locations) < 2 {
			return nil, fmt.Errorf("catalog entry %q: location choice requires at least two locations", boss.Name)
		}
		if boss.Color == "" {
			boss.Color = "#FF0000"
		}
		if !hexColorPattern.MatchString(boss.Color) {
			return nil, fmt.Errorf("catalog entry %q: invalid color %q", boss.Name, boss.Color)
		}
		byName[boss.Name] = i
	}
	return &Catalog{bosses: file.Bosses, byName: byName}, nil
}

// Lookup returns the boss definition for name.
func (c *Catalog) Lookup(name string) (Boss, bool) {
	idx, ok := c.byName[name]
	if !ok {
		return Boss{}, false
	}
	return c.bosses[idx], true
}

// All returns the bosses in file order.
func (c *Catalog) All() []Boss {
	out := make([]Boss, len(c.bosses))
	copy(out, c.bosses)
	return out
}

func (c *Catalog) Len() int {
	return len(c.bosses)
}

// ResolveLocation maps a caller-supplied selection to a canonical location
// string. Selection is matched exactly first, then as a suffix ("7" selects
// a location ending in "7"). Bosses without a location choice always get
// their default location.
func (c *Catalog) ResolveLocation(boss Boss, selection string) string {
	if !boss.HasLocationChoice {
		return boss.DefaultLocation()
	}
	selection = strings.TrimSpace(selection)
	if selection == "" {
		return boss.DefaultLocation()
	}
	for _, loc := range boss.Locations {
		if loc == selection {
			return loc
		}
	}
	for _, loc := range boss.Locations {
		if strings.HasSuffix(loc, selection) {
			return loc
		}
	}
	return boss.DefaultLocation()
}
