// Package bucketing assigns a visitor to one page of a running A/B experiment
// without storing anything per visitor.
package bucketing

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"

	"github.com/google/uuid"
)

const unknownPart = "unknown"

// Test fields an experiment can vary.
const (
	FieldHeadline    = "headline"
	FieldSubline     = "subline"
	FieldVSLURL      = "vsl_url"
	FieldPassMessage = "pass_message"
)

// ValidTestFields is the allow-list for Experiment.TestField.
var ValidTestFields = map[string]bool{
	FieldHeadline:    true,
	FieldSubline:     true,
	FieldVSLURL:      true,
	FieldPassMessage: true,
}

// Variant is one renderable page of an experiment. Index 0 is the control.
type Variant struct {
	PageID      uuid.UUID
	Headline    string
	Subline     string
	VSLURL      string
	PassMessage string
}

// Signal builds the hash input. The part order is fixed; empty parts become "unknown".
func Signal(ip, userAgent, experimentID string) string {
	return orUnknown(ip) + orUnknown(userAgent) + orUnknown(experimentID)
}

// Bucket picks variants[sha256(signal)[0:4] mod len(variants)].
// With fewer than two variants the first one is returned unchanged.
func Bucket(variants []Variant, signal string) Variant {
	if len(variants) == 0 {
		return Variant{}
	}
	return variants[Index(len(variants), signal)]
}

// Index is the bucket position for signal among n variants.
func Index(n int, signal string) int {
	if n < 2 {
		return 0
	}
	sum := sha256.Sum256([]byte(signal))
	return int(binary.BigEndian.Uint32(sum[:4]) % uint32(n))
}

// ApplyVariant overlays the tested field of variant onto control.
// Everything else keeps the control's values, including PageID.
func ApplyVariant(control, variant Variant, testField string) Variant {
	out := control
	switch testField {
	case FieldHeadline:
		out.Headline = variant.Headline
	case FieldSubline:
		out.Subline = variant.Subline
	case FieldVSLURL:
		out.VSLURL = variant.VSLURL
	case FieldPassMessage:
		out.PassMessage = variant.PassMessage
	}
	return out
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownPart
	}
	return s
}
