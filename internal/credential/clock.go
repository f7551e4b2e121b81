package credential

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// Clock is the time source for expiries and token timestamps.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// RandomSource is the CSPRNG used for token material. crypto/rand.Reader is the
// production source.
func RandomSource() io.Reader {
	return rand.Reader
}

// RandomToken returns n random bytes from r, hex encoded.
func RandomToken(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
