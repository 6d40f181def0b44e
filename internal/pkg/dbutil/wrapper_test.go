package dbutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"sqlite_busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite_locked_wrapped", fmt.Errorf("failed: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), true},
		{"sqlite_constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"message_locked", errors.New("Database Is Locked"), true},
		{"other", errors.New("no such table: kv"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}
