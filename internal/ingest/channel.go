// Package ingest normalizes raw channel tokens arriving from the OCR
// capture pipeline or manual input before they reach the record store.
package ingest

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidChannel = errors.New("invalid channel token")

// NormalizeChannel cleans a raw channel token: trims whitespace, folds
// full-width digits to ASCII, strips a leading CH/ch or 頻道 prefix and
// leading zeros, and verifies the remainder is a positive number. OCR output
// is noisy, so anything that does not survive cleaning is rejected rather
// than guessed at.
func NormalizeChannel(raw string) (string, error) {
	token := strings.TrimSpace(raw)
	token = foldFullWidthDigits(token)
	lower := strings.ToLower(token)
	switch {
	case strings.HasPrefix(lower, "ch"):
		token = token[2:]
	case strings.HasPrefix(token, "頻道"):
		token = strings.TrimPrefix(token, "頻道")
	}
	token = strings.TrimSpace(token)
	token = strings.TrimLeft(token, "0")
	if token == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidChannel, raw)
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidChannel, raw)
		}
	}
	return token, nil
}

func foldFullWidthDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '０' && r <= '９' {
			r = '0' + (r - '０')
		}
		b.WriteRune(r)
	}
	return b.String()
}
