package render

import (
	"github.com/skip2/go-qrcode"
)

const defaultQRCodeSizePx = 256

// QRCode returns a PNG QR code for payload, e.g. the viewer URL a display
// should open.
func QRCode(payload string, sizePx int) ([]byte, error) {
	if sizePx <= 0 {
		sizePx = defaultQRCodeSizePx
	}
	if sizePx > 1024 {
		sizePx = 1024
	}
	return qrcode.Encode(payload, qrcode.Medium, sizePx)
}
