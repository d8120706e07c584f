package pairing

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	totpDigits = 6
	totpStep   = 30 * time.Second
)

// totpNow computes the RFC 6238 TOTP code for secret at the current time,
// using the standard HMAC-SHA1/30s/6-digit parameters.
func totpNow(secret []byte) (string, error) {
	return totpAt(secret, time.Now())
}

func totpAt(secret []byte, t time.Time) (string, error) {
	counter := uint64(t.Unix()) / uint64(totpStep.Seconds())
	return hotp(secret, counter)
}

// hotp implements RFC 4226's HOTP over an HMAC-SHA1 digest, truncated to
// totpDigits decimal digits, zero-padded.
func hotp(secret []byte, counter uint64) (string, error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(sha1.New, secret)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := (uint32(sum[offset]&0x7f) << 24) |
		(uint32(sum[offset+1]) << 16) |
		(uint32(sum[offset+2]) << 8) |
		uint32(sum[offset+3])

	mod := uint32(1)
	for i := 0; i < totpDigits; i++ {
		mod *= 10
	}
	code := truncated % mod
	return fmt.Sprintf("%0*d", totpDigits, code), nil
}
