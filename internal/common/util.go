package common

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// MakeRandHexString returns size random bytes hex-encoded.
func MakeRandHexString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// WipeByteArray zeroes b in place. Used on decrypted credentials once a
// publish attempt is done with them.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// MonthKey returns the usage-counter month key ("2006-01") for t in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// StartOfMonth returns midnight UTC on the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
