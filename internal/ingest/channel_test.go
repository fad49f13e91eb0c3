package ingest

import (
	"errors"
	"testing"
)

func TestNormalizeChannel(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"3", "3"},
		{" 12 ", "12"},
		{"CH7", "7"},
		{"ch07", "7"},
		{"頻道15", "15"},
		{"０８", "8"},
		{"CH１２", "12"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := NormalizeChannel(tc.raw)
			if err != nil {
				t.Fatalf("NormalizeChannel(%q) error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Errorf("NormalizeChannel(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalizeChannelRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "  ", "CH", "abc", "1a2", "000", "頻道"} {
		t.Run(raw, func(t *testing.T) {
			if _, err := NormalizeChannel(raw); !errors.Is(err, ErrInvalidChannel) {
				t.Errorf("NormalizeChannel(%q) error = %v, want ErrInvalidChannel", raw, err)
			}
		})
	}
}
