package checkout

import (
	"crypto/rand"
	"fmt"
)

// trackingAlphabet drops 0/O/1/I/L so codes survive being read over the phone.
const trackingAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const trackingCodeLength = 8

// NewTrackingCode returns a customer-facing order code like "CRM-7K2MXF4Q".
func NewTrackingCode() (string, error) {
	buf := make([]byte, trackingCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating tracking code: %w", err)
	}
	for i, b := range buf {
		buf[i] = trackingAlphabet[int(b)%len(trackingAlphabet)]
	}
	return "CRM-" + string(buf), nil
}
