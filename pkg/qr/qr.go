// Package qr renders QR code images for participant confirmation emails.
package qr

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/sizif-22/eventy-back/pkg/errors"
)

// DefaultSize is the rendered PNG edge length in pixels.
const DefaultSize = 256

// EncodePNG renders the payload as a QR code PNG.
func EncodePNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, errors.New(errors.CodeValidation, "qr payload is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "qr encode failed")
	}
	return png, nil
}

// EncodeDataURI renders the payload as a base64 data URI suitable for
// embedding directly in an HTML img tag.
func EncodeDataURI(payload string, size int) (string, error) {
	png, err := EncodePNG(payload, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
