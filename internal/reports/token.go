package reports

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 12

// NewReportID mints an opaque report identifier, e.g. "rep_1f8a...".
func NewReportID() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating report id: %w", err)
	}
	return "rep_" + hex.EncodeToString(buf), nil
}
