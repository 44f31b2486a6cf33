package suggest

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/service"
)

// Vendor suggests categories learned from previously ingested records.
type Vendor struct {
	lookup service.VendorLookup
}

// NewVendor creates a vendor suggester backed by lookup.
func NewVendor(lookup service.VendorLookup) *Vendor {
	return &Vendor{lookup: lookup}
}

// Suggest implements service.Suggester. It only answers for the category
// column.
func (v *Vendor) Suggest(ctx context.Context, req service.SuggestionRequest) (string, bool, error) {
	if req.Column != model.FieldCategory || req.Record == nil {
		return "", false, nil
	}
	key := model.VendorKey(req.Record.Title)
	if key == "" {
		return "", false, nil
	}

	vendor, err := v.lookup.GetVendor(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return vendor.Category, vendor.Category != "", nil
}
