package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/inventory"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

func TestParseLines(t *testing.T) {
	lines, err := parseLines([]string{"A=2", " B = 1 "})
	require.NoError(t, err)
	assert.Equal(t, []inventory.Line{{ItemID: "A", Quantity: 2}, {ItemID: "B", Quantity: 1}}, lines)

	for _, bad := range []string{"A", "=2", "A=two"} {
		_, err := parseLines([]string{bad})
		assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err), bad)
	}
}

func TestParseVisit(t *testing.T) {
	occ, err := parseVisit("2024-05-01:filter change")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", occ.ScheduledDate.Format("2006-01-02"))
	assert.Equal(t, "filter change", occ.Note)

	occ, err = parseVisit(":no date yet")
	require.NoError(t, err)
	assert.True(t, occ.ScheduledDate.IsZero())

	_, err = parseVisit("May 1st")
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestContractFields(t *testing.T) {
	fields, err := contractFields("", "C1", "annual", "2024-01-15", "2025-01-15", "1200.50", "")
	require.NoError(t, err)
	assert.Equal(t, "C1", fields.CustomerID)
	require.NotNil(t, fields.WarrantyEndsAt)
	require.NotNil(t, fields.Amount)
	assert.Equal(t, "1200.50", fields.Amount.StringFixed(2))

	_, err = contractFields("", "C1", "annual", "15/01/2024", "", "lots", "")
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Contains(t, de.Details, "purchase_date")
	assert.Contains(t, de.Details, "amount")
}
