package memory

import (
	"context"
	"fmt"
	"sync"

	"pocketbook/internal/sheets"
)

var _ sheets.LedgerMirror = (*Store)(nil)

// Store is an in-process ledger mirror for development and tests. Rows are
// deduplicated by event id so redelivered events are recorded once.
type Store struct {
	mu   sync.Mutex
	rows []sheets.EventRow
	refs map[string]string
}

func New() *Store {
	return &Store{refs: make(map[string]string)}
}

// AppendRow stores the row and returns a synthetic row reference.
func (s *Store) AppendRow(_ context.Context, row sheets.EventRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.refs[row.EventID]; ok && row.EventID != "" {
		return ref, nil
	}
	s.rows = append(s.rows, row)
	ref := fmt.Sprintf("mem:%d", len(s.rows))
	if row.EventID != "" {
		s.refs[row.EventID] = ref
	}
	return ref, nil
}

// Rows returns a copy of the mirrored rows in append order.
func (s *Store) Rows() []sheets.EventRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.EventRow(nil), s.rows...)
}
