package export

import (
	"context"
	"slices"
	"sync"
)

// MemoryWriter keeps written sheets in memory. The CLI uses it for dry runs.
type MemoryWriter struct {
	mu     sync.Mutex
	sheets map[string][][]any
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{sheets: make(map[string][][]any)}
}

func (w *MemoryWriter) WriteRows(_ context.Context, sheet string, rows [][]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sheets[sheet] = slices.Clone(rows)
	return nil
}

// Rows returns the last rows written to sheet.
func (w *MemoryWriter) Rows(sheet string) [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sheets[sheet]
}
