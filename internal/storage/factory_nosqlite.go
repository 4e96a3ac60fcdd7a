//go:build !sqlite

package storage

import (
	"errors"
	"fmt"
)

var ErrSQLiteUnavailable = errors.New("sqlite backend not compiled in")

func newSQLiteStore(path string) (Store, error) {
	return nil, fmt.Errorf("open %s: %w (rebuild with -tags sqlite)", path, ErrSQLiteUnavailable)
}
