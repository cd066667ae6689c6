package util

import (
	"fmt"
	"strings"
)

const base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Encode the given database id as a base62 short code.
// Most significant digit first, no leading zero digits, id 0 encodes to "0".
func Base62Encode(n int64) string {
	if n == 0 {
		return string(base62Chars[0])
	}

	encoded := ""
	base := int64(len(base62Chars))
	for n > 0 {
		remainder := n % base
		n /= base
		encoded = string(base62Chars[remainder]) + encoded
	}

	return encoded
}

// Decode a base62 short code back to the database id it was generated from.
// Returns an error for an empty string or characters outside the alphabet.
func Base62Decode(code string) (int64, error) {
	if code == "" {
		return 0, fmt.Errorf("base62: empty code")
	}

	var n int64
	base := int64(len(base62Chars))
	for _, c := range code {
		idx := strings.IndexRune(base62Chars, c)
		if idx < 0 {
			return 0, fmt.Errorf("base62: invalid character %q", c)
		}
		n = n*base + int64(idx)
	}

	return n, nil
}
