package codes

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalidCode covers every way a presented code can be bad: wrong shape,
// non-integer identifier, broken base64, bad signature, or an identifier
// that resolves to nothing. Callers must not reveal which one it was.
var ErrInvalidCode = errors.New("invalid code")

// Codec signs registration ids into printable codes and verifies presented
// codes. The key is process-wide and read-only; changing it invalidates
// every code already printed.
type Codec struct {
	key []byte
}

func NewCodec(key []byte) *Codec {
	return &Codec{key: key}
}

func (c *Codec) signature(msg []byte) []byte {
	mac := hmac.New(sha1.New, c.key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// Sign produces the canonical padded code "{id}.{urlsafe_b64(signature)}"
// printed on tickets and embedded in QR codes.
func (c *Codec) Sign(id int64) string {
	msg := strconv.FormatInt(id, 10)
	sig := c.signature([]byte(msg))
	return msg + "." + base64.URLEncoding.EncodeToString(sig)
}

// SignStripped is Sign without trailing padding, for wallet barcode text
// where '=' characters are undesirable. DecodeAndVerify accepts both forms.
func (c *Codec) SignStripped(id int64) string {
	return strings.TrimRight(c.Sign(id), "=")
}

// repad restores the minimal '=' padding so both stripped and padded
// variants decode.
func repad(s string) string {
	if n := len(s) % 4; n != 0 {
		return s + strings.Repeat("=", 4-n)
	}
	return s
}

// DecodeAndVerify checks a presented code and returns the signed identifier.
//
// Wallet passes wrap the whole "id.signature" string in an outer urlsafe
// base64 layer, so the full code is tried as base64 text first; when that
// decodes to valid UTF-8 the decoded text is what gets split and verified,
// otherwise the raw string is. Whichever path produced the candidate, the
// signature check below is the authority: a bad signature is always
// ErrInvalidCode.
func (c *Codec) DecodeAndVerify(code string) (int64, error) {
	candidate := code
	if outer, err := base64.URLEncoding.DecodeString(repad(code)); err == nil && utf8.Valid(outer) {
		candidate = string(outer)
	}

	parts := strings.Split(candidate, ".")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: expected exactly one separator", ErrInvalidCode)
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: identifier is not an integer", ErrInvalidCode)
	}

	sig, err := base64.URLEncoding.DecodeString(repad(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("%w: malformed base64 signature", ErrInvalidCode)
	}

	// hmac.Equal is constant time; the identifier text as presented is what
	// gets re-signed, matching what Sign produced.
	if !hmac.Equal(sig, c.signature([]byte(parts[0]))) {
		return 0, fmt.Errorf("%w: signature mismatch", ErrInvalidCode)
	}

	return id, nil
}
