//go:build !cgo

package main

import (
	"errors"

	"github.com/dusk-indust/dreamffi/internal/graph"
)

var errNoGraphDB = errors.New("graph databases need a cgo build; omit --db for an in-memory index")

// openStore returns an in-memory store. On-disk graphs need kuzu, which
// needs cgo.
func openStore(path string, _ bool) (graph.Store, error) {
	if path != "" {
		return nil, errNoGraphDB
	}
	return graph.NewMemStore(), nil
}
