//go:build cgo

package main

import (
	"fmt"
	"os"

	"github.com/dusk-indust/dreamffi/internal/graph"
)

// openStore opens the graph store at path, or an in-memory store when path
// is empty. fresh discards any graph already at path.
func openStore(path string, fresh bool) (graph.Store, error) {
	if path == "" {
		return graph.NewMemStore(), nil
	}
	if fresh {
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("remove stale graph: %w", err)
		}
	}
	store, err := graph.NewKuzuFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("open graph: %w", err)
	}
	return store, nil
}
