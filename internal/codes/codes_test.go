package codes

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixture carried over from the historical scanner deployment: the signed
// form of registration 1 under the key "prout".
const (
	fixtureKey  = "prout"
	fixtureCode = "1.Hhv2SqmQwO8UBEwp50X8ZWPbIvk="
)

func testCodec() *Codec {
	return NewCodec([]byte(fixtureKey))
}

func TestSignFixture(t *testing.T) {
	assert.Equal(t, fixtureCode, testCodec().Sign(1))
}

func TestSignStrippedFixture(t *testing.T) {
	c := testCodec()
	stripped := c.SignStripped(1)
	assert.Equal(t, "1.Hhv2SqmQwO8UBEwp50X8ZWPbIvk", stripped)

	id, err := c.DecodeAndVerify(stripped)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestDecodeAndVerifyRoundTrip(t *testing.T) {
	c := testCodec()
	for _, id := range []int64{0, 1, 7, 42, 999, 123456, 98765432101} {
		id2, err := c.DecodeAndVerify(c.Sign(id))
		require.NoError(t, err)
		assert.Equal(t, id, id2)
	}
}

func TestDecodeAndVerifyFixture(t *testing.T) {
	id, err := testCodec().DecodeAndVerify(fixtureCode)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestDecodeAndVerifyWalletFormat(t *testing.T) {
	c := testCodec()

	// Padded and stripped outer encodings must both verify.
	wrapped := base64.URLEncoding.EncodeToString([]byte(c.Sign(1)))
	id, err := c.DecodeAndVerify(wrapped)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	stripped := base64.RawURLEncoding.EncodeToString([]byte(c.Sign(1)))
	id, err = c.DecodeAndVerify(stripped)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestDecodeAndVerifyWalletFormatBadSignature(t *testing.T) {
	// The outer-decode fallback must not accept a correctly wrapped but
	// wrongly signed payload.
	wrapped := base64.URLEncoding.EncodeToString([]byte("1.prou"))
	_, err := testCodec().DecodeAndVerify(wrapped)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestDecodeAndVerifyRejectsMalformed(t *testing.T) {
	c := testCodec()

	cases := map[string]string{
		"empty":                "",
		"no separator":         "1Hhv2SqmQwO8UBEwp50X8ZWPbIvk",
		"multiple separators":  "1.Hhv2.SqmQwO8UBEwp50X8ZWPbIvk=",
		"non-integer id":       "one.Hhv2SqmQwO8UBEwp50X8ZWPbIvk=",
		"non-base64 signature": "1.???",
		"wrong signature":      "1.prou",
		"signature of 2":       "2.Hhv2SqmQwO8UBEwp50X8ZWPbIvk=",
	}

	for name, code := range cases {
		_, err := c.DecodeAndVerify(code)
		assert.ErrorIs(t, err, ErrInvalidCode, name)
	}
}

func TestDecodeAndVerifySingleCharacterFlips(t *testing.T) {
	c := testCodec()
	valid := c.Sign(1)

	for i := range valid {
		flipped := []byte(valid)
		if flipped[i] == 'x' {
			flipped[i] = 'y'
		} else {
			flipped[i] = 'x'
		}
		_, err := c.DecodeAndVerify(string(flipped))
		assert.ErrorIs(t, err, ErrInvalidCode, "flip at %d", i)
	}
}

func TestDecodeAndVerifyKeyDependence(t *testing.T) {
	other := NewCodec([]byte("another-key"))
	_, err := other.DecodeAndVerify(fixtureCode)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestQRCodePayload(t *testing.T) {
	png, err := testCodec().QRCode(1)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}
