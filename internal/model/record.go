package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical record field names. A column whose name equals one of these
// populates the corresponding Record field.
const (
	FieldTitle           = "title"
	FieldDate            = "date"
	FieldCharge          = "charge"
	FieldCategory        = "category"
	FieldFlagForReview   = "flag_for_review"
	FieldRecurring       = "recurring"
	FieldHandler         = "handler"
	FieldSpecialMetadata = "special_metadata"
)

// CanonicalFields lists every canonical field in storage order.
var CanonicalFields = []string{
	FieldTitle, FieldDate, FieldCharge, FieldCategory,
	FieldFlagForReview, FieldRecurring, FieldHandler, FieldSpecialMetadata,
}

// FieldType returns the column type a canonical field requires.
func FieldType(name string) (ColumnType, bool) {
	switch name {
	case FieldDate:
		return Date, true
	case FieldCharge:
		return Numeric, true
	case FieldTitle, FieldCategory, FieldFlagForReview, FieldRecurring, FieldHandler, FieldSpecialMetadata:
		return String, true
	default:
		return String, false
	}
}

// Record is one normalized row. Every field is always present; fields a
// format does not populate keep their zero value.
type Record struct {
	Date            time.Time
	Charge          decimal.Decimal
	Title           string
	Category        string
	Handler         string
	SpecialMetadata string
	FlagForReview   bool
	Recurring       bool

	// Provenance
	FormatID   string
	SourcePath string
	Line       int
	// Occurrence numbers rows of one file that share the same content key,
	// starting at 0. See NumberOccurrences.
	Occurrence int
}

// contentKey identifies what a row says, independent of where it was read.
// The format ID is part of it so identical rows from different institutions
// stay distinct.
func (r *Record) contentKey() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s",
		r.FormatID,
		r.Date.Format("2006-01-02"),
		r.Charge.StringFixed(2),
		r.Title,
		r.SpecialMetadata)
}

// Hash creates a stable hash for duplicate detection. Source path and line
// are excluded, so re-importing a statement (even renamed) hashes the same
// way, while Occurrence keeps repeated identical rows within one file apart.
func (r *Record) Hash() string {
	data := r.contentKey()
	if r.Occurrence > 0 {
		data += fmt.Sprintf(":#%d", r.Occurrence)
	}
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// NumberOccurrences sets Occurrence on each record: the number of earlier
// records in the slice with the same source path and content. All records of
// a file must be numbered in one call for the numbering to be stable across
// re-imports.
func NumberOccurrences(records []Record) {
	seen := make(map[string]int)
	for i := range records {
		key := records[i].SourcePath + "\x00" + records[i].contentKey()
		records[i].Occurrence = seen[key]
		seen[key]++
	}
}
