package storage

import "fmt"

const DefaultStoreKind = "memory"

// NewStore builds a backend by kind. path is the sqlite database file for
// "sqlite" and the root directory for "file".
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		if path == "" {
			return nil, fmt.Errorf("file store requires a directory path")
		}
		return NewFileStore(path), nil
	case "sqlite":
		return newSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// KindOf names the backend of a store as NewStore spells it. Stores built
// outside this package report "custom".
func KindOf(store Store) string {
	kinded, ok := store.(interface{ Kind() string })
	if !ok {
		return "custom"
	}
	return kinded.Kind()
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
