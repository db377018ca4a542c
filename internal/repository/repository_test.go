package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateKeyError(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}

	assert.True(t, isDuplicateKeyError(dup, "users_email_key"))
	assert.True(t, isDuplicateKeyError(fmt.Errorf("insert: %w", dup), "users_email_key"))
	assert.False(t, isDuplicateKeyError(dup, "idx_installments_loan_number"))
	assert.False(t, isDuplicateKeyError(&pgconn.PgError{Code: "23503", ConstraintName: "users_email_key"}, "users_email_key"))
	assert.False(t, isDuplicateKeyError(errors.New("boom"), "users_email_key"))
}

func TestNewListQuery(t *testing.T) {
	q := NewListQuery()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 20, q.PerPage)
	assert.NotNil(t, q.Filters)
}
