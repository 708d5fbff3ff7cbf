package crypto

import (
	"crypto/rand"
	"io"
)

const (
	SlugSuffixLength      = 4
	PlaceholderSlugLength = 6
)

const slugCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// Reader is the randomness source used by the registry outside of tests.
var Reader io.Reader = rand.Reader

// SlugSuffix creates the disambiguator appended to a channel id that collides
// with an existing one.
func SlugSuffix(r io.Reader) string {
	return randomString(r, SlugSuffixLength)
}

// PlaceholderSlug is used as a channel id when the name has no usable characters.
func PlaceholderSlug(r io.Reader) string {
	return "channel-" + randomString(r, PlaceholderSlugLength)
}

// randomString maps one byte of r onto the charset per character, reading from
// crypto/rand when r is nil or fails.
func randomString(r io.Reader, length int) string {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		buf = make([]byte, length)
		_, _ = io.ReadFull(rand.Reader, buf)
	}
	for i, b := range buf {
		buf[i] = slugCharset[int(b)%len(slugCharset)]
	}
	return string(buf)
}
