package catalog

import (
	"strings"
	"testing"
)

func TestDefaultCatalogParses(t *testing.T) {
	c := Default()
	if c.Len() == 0 {
		t.Fatal("expected embedded catalog to contain bosses")
	}
	boss, ok := c.Lookup("殭屍猴王")
	if !ok {
		t.Fatal("expected 殭屍猴王 in embedded catalog")
	}
	if !boss.HasLocationChoice {
		t.Error("expected 殭屍猴王 to have a location choice")
	}
	if boss.MinMinutes <= 0 || boss.MaxMinutes < boss.MinMinutes {
		t.Errorf("invalid respawn bounds %d..%d", boss.MinMinutes, boss.MaxMinutes)
	}
}

func TestParseValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "bosses: []", "no bosses"},
		{"missing name", "bosses:\n  - minMinutes: 5\n    maxMinutes: 10\n    locations: [a]", "missing name"},
		{"bad bounds", "bosses:\n  - name: x\n    minMinutes: 10\n    maxMinutes: 5\n    locations: [a]", "invalid respawn bounds"},
		{"no locations", "bosses:\n  - name: x\n    minMinutes: 5\n    maxMinutes: 10", "at least one location"},
		{"bad color", "bosses:\n  - name: x\n    minMinutes: 5\n    maxMinutes: 10\n    locations: [a]\n    color: red", "invalid color"},
		{"duplicate", "bosses:\n  - name: x\n    minMinutes: 5\n    maxMinutes: 10\n    locations: [a]\n  - name: x\n    minMinutes: 5\n    maxMinutes: 10\n    locations: [b]", "duplicate"},
		{"choice needs two", "bosses:\n  - name: x\n    minMinutes: 5\n    maxMinutes: 10\n    locations: [a]\n    hasLocationChoice: true", "at least two"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not contain %q", err, tc.want)
			}
		})
	}
}

func TestColorValue(t *testing.T) {
	b := Boss{Color: "#1E90FF"}
	if got := b.ColorValue(); got != 0x1E90FF {
		t.Errorf("ColorValue() = %#x, want 0x1E90FF", got)
	}
	bad := Boss{Color: "nope"}
	if got := bad.ColorValue(); got != 0xFF0000 {
		t.Errorf("ColorValue() fallback = %#x, want 0xFF0000", got)
	}
}

func TestResolveLocation(t *testing.T) {
	c := Default()
	boss, _ := c.Lookup("殭屍猴王")

	if got := c.ResolveLocation(boss, "7"); got != "夜市徒步區7" {
		t.Errorf("selection 7 = %q", got)
	}
	if got := c.ResolveLocation(boss, "7-1"); got != "夜市徒步區7-1" {
		t.Errorf("selection 7-1 = %q", got)
	}
	if got := c.ResolveLocation(boss, ""); got != "夜市徒步區7" {
		t.Errorf("empty selection = %q", got)
	}
	if got := c.ResolveLocation(boss, "unknown"); got != "夜市徒步區7" {
		t.Errorf("unknown selection = %q", got)
	}

	single, _ := c.Lookup("巴洛古")
	if got := c.ResolveLocation(single, "7"); got != single.DefaultLocation() {
		t.Errorf("single-location boss = %q", got)
	}
}
