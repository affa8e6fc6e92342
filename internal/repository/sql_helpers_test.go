package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: true},
		{name: "foreign key violation", err: &pgconn.PgError{Code: "23503"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestNullStringHelpers(t *testing.T) {
	assert.False(t, toNullString(nil).Valid)

	v := "abc"
	assert.Equal(t, sql.NullString{String: "abc", Valid: true}, toNullString(&v))
	assert.False(t, toNullStringValue("").Valid)
	assert.Equal(t, "", fromNullString(sql.NullString{}))
	assert.Nil(t, fromNullStringPtr(sql.NullString{}))
	assert.Equal(t, "abc", *fromNullStringPtr(sql.NullString{String: "abc", Valid: true}))
}
