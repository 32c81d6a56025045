package terminology

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

type csvRepo struct {
	rows []SeedMapping
}

// NewCSVRepo reads the seed-mapping CSV once. Expected header:
// ayush_term,icd_code,icd_title.
func NewCSVRepo(path string) (SeedRepository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed mappings: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read seed mappings: %w", err)
	}
	if len(records) == 0 {
		return &csvRepo{}, nil
	}

	cols := map[string]int{}
	for i, name := range records[0] {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"ayush_term", "icd_code", "icd_title"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("seed mappings missing column %q", required)
		}
	}

	repo := &csvRepo{}
	for _, rec := range records[1:] {
		row := SeedMapping{
			AyushTerm: strings.TrimSpace(rec[cols["ayush_term"]]),
			ICDCode:   strings.TrimSpace(rec[cols["icd_code"]]),
			ICDTitle:  strings.TrimSpace(rec[cols["icd_title"]]),
		}
		if row.AyushTerm == "" {
			continue
		}
		repo.rows = append(repo.rows, row)
	}
	return repo, nil
}

func (r *csvRepo) All() []SeedMapping {
	return r.rows
}

// NewStaticRepo wraps an in-memory row set, used by tests and tools.
func NewStaticRepo(rows []SeedMapping) SeedRepository {
	return &csvRepo{rows: rows}
}
