//go:build !sqlite

package storage

import (
	"errors"
	"testing"
)

func TestNewStoreSQLiteUnavailable(t *testing.T) {
	if _, err := NewStore("sqlite", "stopline.db"); !errors.Is(err, ErrSQLiteUnavailable) {
		t.Fatalf("expected sqlite to be unavailable without the build tag, got %v", err)
	}
}
