// Package qr renders a room's join URL as a PNG QR code, so a phone
// can join a local match without typing the room code. Grounded on
// the teacher pack's skip2/go-qrcode dependency (bormisov1's client
// uses it for account-recovery codes; here it encodes a join link
// instead).
package qr

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// JoinPNG renders joinURL as a 256px PNG QR code.
func JoinPNG(joinURL string) ([]byte, error) {
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr: encoding %q: %w", joinURL, err)
	}
	return png, nil
}
