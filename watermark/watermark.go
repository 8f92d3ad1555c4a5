// Package watermark implements the core's zero-width steganographic
// response codec: embedding a per-account bit key into response text via
// zero-width joiner/non-joiner characters, and extracting it back out to
// attribute leaked text to an account.
package watermark

import (
	"crypto/sha256"
	"strings"
)

const (
	zwj  = '‍'
	zwnj = '‌'

	keyBits = 32
)

// AccountKey derives the 32-bit watermark key for account, the first four
// bytes of SHA-256("gw_wm_v1:" + account_id).
func AccountKey(accountID string) [keyBits]bool {
	sum := sha256.Sum256([]byte("gw_wm_v1:" + accountID))
	var bits [keyBits]bool
	for i := 0; i < keyBits; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		bits[i] = (sum[byteIdx]>>uint(bitIdx))&1 == 1
	}
	return bits
}

// Embed inserts a zero-width joiner or non-joiner after every space in
// text, cycling through account's 32-bit key to choose which marker.
func Embed(text, accountID string) string {
	key := AccountKey(accountID)
	var b strings.Builder
	bit := 0
	for _, r := range text {
		b.WriteRune(r)
		if r == ' ' {
			if key[bit%keyBits] {
				b.WriteRune(zwj)
			} else {
				b.WriteRune(zwnj)
			}
			bit++
		}
	}
	return b.String()
}

// extractBits filters text down to its zero-width markers, returning one
// bool per marker (true for ZWJ, false for ZWNJ).
func extractBits(text string) []bool {
	var bits []bool
	for _, r := range text {
		switch r {
		case zwj:
			bits = append(bits, true)
		case zwnj:
			bits = append(bits, false)
		}
	}
	return bits
}

// Detect compares the zero-width markers in text against each candidate
// account's key, cyclically, over the first min(64, n) markers, and
// returns the first candidate whose bits match at or above 85%.
func Detect(text string, candidates []string) (string, bool) {
	bits := extractBits(text)
	if len(bits) == 0 {
		return "", false
	}
	n := len(bits)
	if n > 64 {
		n = 64
	}

	for _, account := range candidates {
		key := AccountKey(account)
		matches := 0
		for i := 0; i < n; i++ {
			if bits[i] == key[i%keyBits] {
				matches++
			}
		}
		if float64(matches)/float64(n) >= 0.85 {
			return account, true
		}
	}
	return "", false
}
