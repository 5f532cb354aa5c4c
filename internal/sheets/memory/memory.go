package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ports "fintrack/internal/sheets"
)

// Store keeps exported reports in memory, keyed by sheet name.
type Store struct {
	mu     sync.Mutex
	sheets map[string][][]string
	writes int
}

var _ ports.ReportWriter = (*Store)(nil)

func New() *Store {
	return &Store{sheets: make(map[string][][]string)}
}

// WriteReport replaces the sheet contents and returns a synthetic range reference.
func (s *Store) WriteReport(_ context.Context, sheet string, rows []ports.ReportRow) (string, error) {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return "", ports.ErrEmptySheetName
	}
	values := ports.Values(rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[sheet] = values
	s.writes++
	return fmt.Sprintf("mem:%s!A1:D%d", sheet, len(values)), nil
}

// Sheet returns a copy of what was last written to sheet.
func (s *Store) Sheet(name string) ([][]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sheets[name]
	if !ok {
		return nil, false
	}
	out := make([][]string, len(v))
	for i, row := range v {
		out[i] = append([]string(nil), row...)
	}
	return out, true
}

// Writes counts successful exports.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
