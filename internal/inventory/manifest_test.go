package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

func sampleCatalog() domain.Catalog {
	return domain.NewCatalog([]domain.InventoryItem{
		{ID: "A", ProductName: "Filter cartridge", AvailableQuantity: 2},
		{ID: "B", ProductName: "Drive belt", AvailableQuantity: 10},
		{ID: "C", ProductName: "Fuse", AvailableQuantity: 0},
	})
}

func TestBuildManifestAcceptsExactStock(t *testing.T) {
	m, err := BuildManifest([]Line{{ItemID: "A", Quantity: 2}, {ItemID: "B", Quantity: 1}}, sampleCatalog(), "  replaced filter  ")
	require.NoError(t, err)
	assert.False(t, m.NoInventoryApplicable())
	assert.Equal(t, []Line{{ItemID: "A", Quantity: 2}, {ItemID: "B", Quantity: 1}}, m.Lines())
	assert.Equal(t, "replaced filter", m.Note())
	assert.Equal(t, 3, m.TotalUnits())
}

func TestBuildManifestRejections(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		code  string
		key   string
	}{
		{name: "over stock", lines: []Line{{ItemID: "A", Quantity: 3}}, code: apperrors.CodeValidation, key: "items[0]"},
		{name: "zero stock item", lines: []Line{{ItemID: "C", Quantity: 1}}, code: apperrors.CodeValidation, key: "items[0]"},
		{name: "zero quantity", lines: []Line{{ItemID: "B", Quantity: 0}}, code: apperrors.CodeValidation, key: "items[0]"},
		{name: "negative quantity", lines: []Line{{ItemID: "B", Quantity: -4}}, code: apperrors.CodeValidation, key: "items[0]"},
		{name: "unknown item", lines: []Line{{ItemID: "Z", Quantity: 1}}, code: apperrors.CodeValidation, key: "items[0]"},
		{name: "duplicate item", lines: []Line{{ItemID: "B", Quantity: 1}, {ItemID: "B", Quantity: 2}}, code: apperrors.CodeValidation, key: "items[1]"},
		{name: "nothing selected", lines: nil, code: apperrors.CodeEmptySelection},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := BuildManifest(tc.lines, sampleCatalog(), "")
			require.Error(t, err)
			assert.True(t, m.Empty())
			de := apperrors.ToDomainError(err)
			assert.Equal(t, tc.code, de.Code)
			if tc.key != "" {
				assert.Contains(t, de.Details, tc.key)
			}
		})
	}
}

func TestBuildManifestEmptyCatalogShortCircuits(t *testing.T) {
	for _, lines := range [][]Line{nil, {{ItemID: "A", Quantity: 99}}} {
		m, err := BuildManifest(lines, domain.NewCatalog(nil), "no parts needed")
		require.NoError(t, err)
		assert.True(t, m.NoInventoryApplicable())
		assert.True(t, m.Empty())
		assert.Equal(t, "no parts needed", m.Note())
	}
}

func TestManifestLinesAreImmutable(t *testing.T) {
	input := []Line{{ItemID: "B", Quantity: 1}}
	m, err := BuildManifest(input, sampleCatalog(), "")
	require.NoError(t, err)

	input[0].Quantity = 9
	out := m.Lines()
	out[0].Quantity = 7

	assert.Equal(t, 1, m.Lines()[0].Quantity)
}

func TestRevalidateAgainstFresherCatalog(t *testing.T) {
	m, err := BuildManifest([]Line{{ItemID: "A", Quantity: 2}}, sampleCatalog(), "")
	require.NoError(t, err)

	drained := domain.NewCatalog([]domain.InventoryItem{{ID: "A", ProductName: "Filter cartridge", AvailableQuantity: 1}})
	_, err = Revalidate(m, drained)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	none, err := BuildManifest(nil, domain.NewCatalog(nil), "")
	require.NoError(t, err)
	_, err = Revalidate(none, sampleCatalog())
	assert.Equal(t, apperrors.CodeEmptySelection, apperrors.CodeOf(err))
}

func TestSelectionKeepsOneLinePerItem(t *testing.T) {
	var s Selection
	require.NoError(t, s.Add("A", 1))
	err := s.Add("A", 2)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
	assert.Equal(t, []Line{{ItemID: "A", Quantity: 1}}, s.Lines())

	require.NoError(t, s.SetQuantity("A", 2))
	require.NoError(t, s.Add("B", 3))
	s.Remove("A")
	s.Remove("missing")
	assert.Equal(t, []Line{{ItemID: "B", Quantity: 3}}, s.Lines())

	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(s.SetQuantity("A", 1)))
}
