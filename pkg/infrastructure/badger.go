package infrastructure

import (
	"fmt"
	"os"

	"github.com/timshannon/badgerhold/v4"
)

// OpenBadger opens (creating if needed) the embedded subscriber store at
// path.
func OpenBadger(path string) (*badgerhold.Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return store, nil
}
