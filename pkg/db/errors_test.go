package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	const constraint = "idx_unrecorded_charges_gateway_tx"

	pgx := &pgconn.PgError{Code: "23505", ConstraintName: constraint}
	wrapped := fmt.Errorf("insert journal row: %w", pgx)

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pgx any constraint", err: wrapped, want: true},
		{name: "pgx named constraint", err: wrapped, constraint: constraint, want: true},
		{name: "pgx other constraint", err: wrapped, constraint: "idx_other", want: false},
		{name: "pgx not null", err: &pgconn.PgError{Code: "23502"}, want: false},
		{name: "lib/pq", err: &pq.Error{Code: "23505", Constraint: constraint}, constraint: constraint, want: true},
		{name: "gorm translated", err: gorm.ErrDuplicatedKey, want: true},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: unrecorded_charges.gateway_transaction_id"), want: true},
		{name: "plain text", err: errors.New(`duplicate key value violates unique constraint "idx_unrecorded_charges_gateway_tx"`), constraint: constraint, want: true},
		{name: "unrelated", err: errors.New("connection refused"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUniqueViolation(tc.err, tc.constraint))
		})
	}
}
