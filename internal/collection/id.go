package collection

import (
	"crypto/rand"
	"strconv"
	"time"
)

const (
	idAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
	idRandomChars = 9
	// largest multiple of 36 that fits in a byte, for unbiased sampling
	idByteLimit = 252
)

// NewID returns an identifier made of 9 random base36 characters followed by
// the current unix time in milliseconds, also base36.
func NewID() string {
	buf := make([]byte, 0, idRandomChars+9)
	var raw [32]byte
	for len(buf) < idRandomChars {
		if _, err := rand.Read(raw[:]); err != nil {
			// crypto/rand does not fail on supported platforms
			panic("collection: random source failed: " + err.Error())
		}
		for _, b := range raw {
			if b >= idByteLimit {
				continue
			}
			buf = append(buf, idAlphabet[int(b)%len(idAlphabet)])
			if len(buf) == idRandomChars {
				break
			}
		}
	}
	return string(strconv.AppendInt(buf, time.Now().UnixMilli(), 36))
}
