// Package qr turns a decoded CCCD QR payload into the canonical field
// record. The payload is a fixed pipe-delimited layout produced by the card
// issuer, which makes this the simple path next to the visual pipeline.
package qr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dangbaokhoa/identity-card/internal/extract"
)

// payloadFields is the minimum field count of a well-formed payload:
// id|oldId|fullName|DOBddmmyyyy|sex|residence|issueDateddmmyyyy.
const payloadFields = 7

// ErrNoQRCode is returned when every decoding strategy failed to find a QR
// code in the image.
var ErrNoQRCode = errors.New("no QR code found")

// FormatError reports a payload with too few pipe-delimited fields.
type FormatError struct {
	Fields int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed QR payload: expected %d fields, got %d", payloadFields, e.Fields)
}

// ParsePayload maps the positional payload fields onto a Record. The QR
// payload carries no place of origin, so origin mirrors residence, and
// nationality is fixed: only Vietnamese cards carry this QR layout.
func ParsePayload(payload string) (extract.Record, error) {
	parts := strings.Split(strings.TrimSpace(payload), "|")
	if len(parts) < payloadFields {
		return extract.Record{}, &FormatError{Fields: len(parts)}
	}

	rec := extract.Record{
		Number:      strings.TrimSpace(parts[0]),
		OldID:       strings.TrimSpace(parts[1]),
		FullName:    strings.TrimSpace(parts[2]),
		DateOfBirth: formatCompactDate(parts[3]),
		Sex:         strings.TrimSpace(parts[4]),
		Residence:   strings.TrimSpace(parts[5]),
		IssueDate:   formatCompactDate(parts[6]),
		Nationality: "Việt Nam",
	}
	rec.PlaceOfOrigin = rec.Residence
	return rec, nil
}

// formatCompactDate reformats DDMMYYYY to DD/MM/YYYY. The payload is
// machine-written, so unlike the visual pipeline no range validation is
// applied; anything that is not 8 characters yields "".
func formatCompactDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) != 8 {
		return ""
	}
	return raw[0:2] + "/" + raw[2:4] + "/" + raw[4:8]
}
