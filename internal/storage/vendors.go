package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ingest/internal/model"
)

// GetVendor retrieves a vendor by its normalized name. It returns
// sql.ErrNoRows when the vendor is unknown.
func (s *SQLiteStorage) GetVendor(ctx context.Context, name string) (*model.Vendor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	if vendor := s.getCachedVendor(name); vendor != nil {
		return vendor, nil
	}

	return s.getVendorTx(ctx, s.db, name)
}

func (s *SQLiteStorage) getVendorTx(ctx context.Context, q queryable, name string) (*model.Vendor, error) {
	var vendor model.Vendor

	err := q.QueryRowContext(ctx, `
		SELECT name, category, last_updated, use_count, source
		FROM vendors
		WHERE name = ?
	`, name).Scan(
		&vendor.Name,
		&vendor.Category,
		&vendor.LastUpdated,
		&vendor.UseCount,
		&vendor.Source,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows // Not an error, just not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}

	s.cacheVendor(&vendor)

	return &vendor, nil
}

// SaveVendor saves or replaces a vendor mapping.
func (s *SQLiteStorage) SaveVendor(ctx context.Context, vendor *model.Vendor) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateVendor(vendor); err != nil {
		return err
	}

	if vendor.LastUpdated.IsZero() {
		vendor.LastUpdated = time.Now()
	}
	if vendor.Source == "" {
		vendor.Source = model.SourceManual
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vendors (name, category, last_updated, use_count, source)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			category = excluded.category,
			last_updated = excluded.last_updated,
			use_count = excluded.use_count,
			source = excluded.source
	`, vendor.Name, vendor.Category, vendor.LastUpdated, vendor.UseCount, vendor.Source)
	if err != nil {
		return fmt.Errorf("failed to save vendor: %w", err)
	}

	s.cacheVendor(vendor)
	return nil
}

// learnVendorsTx records the category of every categorized record under its
// vendor key. Manual mappings keep their category; their use count still
// grows.
func (s *SQLiteStorage) learnVendorsTx(ctx context.Context, tx *sql.Tx, records []model.Record) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vendors (name, category, last_updated, use_count, source)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET
			use_count = vendors.use_count + 1,
			last_updated = excluded.last_updated,
			category = CASE WHEN vendors.source = ? THEN vendors.category ELSE excluded.category END
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare vendor statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	learned := 0
	for i := range records {
		key := model.VendorKey(records[i].Title)
		if key == "" || records[i].Category == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, key, records[i].Category, now, model.SourceLearned, model.SourceManual); err != nil {
			return learned, fmt.Errorf("failed to learn vendor %q: %w", key, err)
		}
		s.forgetVendor(key)
		learned++
	}
	return learned, nil
}

// GetAllVendors retrieves all vendor mappings.
func (s *SQLiteStorage) GetAllVendors(ctx context.Context) ([]model.Vendor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, category, last_updated, use_count, source
		FROM vendors
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var vendors []model.Vendor
	for rows.Next() {
		var vendor model.Vendor
		if err := rows.Scan(&vendor.Name, &vendor.Category, &vendor.LastUpdated, &vendor.UseCount, &vendor.Source); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, vendor)
	}
	return vendors, rows.Err()
}

// getCachedVendor retrieves a vendor from the cache.
func (s *SQLiteStorage) getCachedVendor(name string) *model.Vendor {
	s.cacheMutex.RLock()

	if time.Now().After(s.cacheExpiry) {
		// Upgrade to write lock
		s.cacheMutex.RUnlock()
		s.cacheMutex.Lock()
		defer s.cacheMutex.Unlock()

		// Double-check after acquiring write lock
		if time.Now().After(s.cacheExpiry) {
			s.vendorCache = make(map[string]*model.Vendor)
		}
		return nil
	}

	vendor := s.vendorCache[name]
	s.cacheMutex.RUnlock()
	return vendor
}

// cacheVendor adds a vendor to the cache.
func (s *SQLiteStorage) cacheVendor(vendor *model.Vendor) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if len(s.vendorCache) == 0 {
		// Set cache expiry on first entry
		s.cacheExpiry = time.Now().Add(5 * time.Minute)
	}
	s.vendorCache[vendor.Name] = vendor
}

func (s *SQLiteStorage) forgetVendor(name string) {
	s.cacheMutex.Lock()
	delete(s.vendorCache, name)
	s.cacheMutex.Unlock()
}

// WarmVendorCache loads all vendors into the cache.
func (s *SQLiteStorage) WarmVendorCache(ctx context.Context) error {
	vendors, err := s.GetAllVendors(ctx)
	if err != nil {
		return err
	}

	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	s.vendorCache = make(map[string]*model.Vendor, len(vendors))
	for i := range vendors {
		s.vendorCache[vendors[i].Name] = &vendors[i]
	}
	s.cacheExpiry = time.Now().Add(5 * time.Minute)
	return nil
}
