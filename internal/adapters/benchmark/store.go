// Package benchmark provides read-only benchmark stores. Rows are validated
// on load and never mutated afterwards, so lookups take no locks.
package benchmark

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/okian/aecr/internal/domain/benchmark"
	"github.com/okian/aecr/internal/domain/model"
)

type key struct {
	industry string
	platform model.Platform
	kpi      model.KPI
}

// MemoryStore is an immutable in-process benchmark table.
type MemoryStore struct {
	rows map[key]model.BenchmarkRow
}

// NewMemoryStore validates rows and indexes them by industry, platform and
// KPI. Industry names are matched case-insensitively. A duplicate key is an
// error.
func NewMemoryStore(rows []model.BenchmarkRow) (*MemoryStore, error) {
	s := &MemoryStore{rows: make(map[key]model.BenchmarkRow, len(rows))}
	for i, r := range rows {
		if !r.Platform.Valid() {
			return nil, fmt.Errorf("%w: row %d: unknown platform %q", model.ErrInvalidBenchmark, i, r.Platform)
		}
		if _, err := model.ParseKPI(string(r.KPI)); err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", model.ErrInvalidBenchmark, i, err)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		k := key{normalize(r.Industry), r.Platform, r.KPI}
		if _, dup := s.rows[k]; dup {
			return nil, fmt.Errorf("%w: row %d: duplicate %s/%s/%s", model.ErrInvalidBenchmark, i, r.Industry, r.Platform, r.KPI)
		}
		s.rows[k] = r
	}
	return s, nil
}

// Lookup implements the comparator's Store.
func (s *MemoryStore) Lookup(_ context.Context, industry string, platform model.Platform, kpi model.KPI) (model.BenchmarkRow, error) {
	r, ok := s.rows[key{normalize(industry), platform, kpi}]
	if !ok {
		return model.BenchmarkRow{}, fmt.Errorf("%s/%s/%s: %w", industry, platform, kpi, domain.ErrNotFound)
	}
	return r, nil
}

// Len returns the number of rows.
func (s *MemoryStore) Len() int { return len(s.rows) }

func normalize(industry string) string {
	return strings.ToLower(strings.TrimSpace(industry))
}
