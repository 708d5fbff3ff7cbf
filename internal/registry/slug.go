package registry

import (
	"io"
	"strings"

	"github.com/gregriff/vogo/relay/internal/crypto"
)

// Slugify derives a channel id from its display name. Letters and digits
// (Latin and Cyrillic) are kept lowercased, every other run of characters
// becomes a single '-', and separators never lead or trail. Names without a
// single usable character get a random placeholder drawn from rnd.
func Slugify(name string, rnd io.Reader) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if !isSlugRune(r) {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return crypto.PlaceholderSlug(rnd)
	}
	return b.String()
}

func isSlugRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r >= 'а' && r <= 'я', r == 'ё':
		return true
	}
	return false
}
