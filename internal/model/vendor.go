package model

import (
	"regexp"
	"strings"
	"time"
)

// VendorSource indicates how a vendor mapping was created.
type VendorSource string

const (
	// SourceLearned marks a mapping learned from an ingested record that
	// already carried a category.
	SourceLearned VendorSource = "LEARNED"
	// SourceManual marks a mapping created from configuration.
	SourceManual VendorSource = "MANUAL"
)

// Vendor maps a normalized record title to a category.
type Vendor struct {
	LastUpdated time.Time
	Name        string
	Category    string
	Source      VendorSource
	UseCount    int
}

var (
	vendorNoise  = regexp.MustCompile(`[#*]+\s*\d+|\d{4,}`)
	vendorSpaces = regexp.MustCompile(`\s+`)
)

// VendorKey reduces a record title to the key vendors are learned and looked
// up under: lower case, store numbers and long digit runs removed, whitespace
// collapsed.
func VendorKey(title string) string {
	s := strings.ToLower(title)
	s = vendorNoise.ReplaceAllString(s, " ")
	s = vendorSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
