package codes

import (
	"github.com/skip2/go-qrcode"
)

// QRCode renders the padded signed message as a PNG. The payload is exactly
// what Sign produces so scanning apps feed it straight back to
// DecodeAndVerify.
func (c *Codec) QRCode(id int64) ([]byte, error) {
	return qrcode.Encode(c.Sign(id), qrcode.Medium, 256)
}
