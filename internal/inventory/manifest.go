// Package inventory validates stock reservations submitted with ticket acceptance.
package inventory

import (
	"fmt"
	"strings"

	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// Line is one requested (item, quantity) pair.
type Line struct {
	ItemID   string `json:"inventory_id"`
	Quantity int    `json:"quantity"`
}

// Manifest is a validated reservation, consumed once by an accept call.
type Manifest struct {
	lines                 []Line
	note                  string
	noInventoryApplicable bool
}

// Lines returns a copy of the validated lines.
func (m Manifest) Lines() []Line {
	return append([]Line(nil), m.lines...)
}

// Note returns the free-text note attached to the whole manifest.
func (m Manifest) Note() string {
	return m.note
}

// NoInventoryApplicable is true when the catalog was empty and nothing can be reserved.
func (m Manifest) NoInventoryApplicable() bool {
	return m.noInventoryApplicable
}

// Empty reports whether the manifest reserves nothing.
func (m Manifest) Empty() bool {
	return len(m.lines) == 0
}

// TotalUnits sums the requested quantities.
func (m Manifest) TotalUnits() int {
	total := 0
	for _, l := range m.lines {
		total += l.Quantity
	}
	return total
}

// BuildManifest validates selected lines against the catalog snapshot.
//
// An empty catalog short-circuits to a manifest flagged NoInventoryApplicable,
// whatever was selected. A non-empty catalog with no selection fails with
// EMPTY_SELECTION. Every other failure is a VALIDATION_FAILED error whose
// details are keyed by line index.
func BuildManifest(selected []Line, catalog domain.Catalog, note string) (Manifest, error) {
	note = strings.TrimSpace(note)
	if catalog.Empty() {
		return Manifest{note: note, noInventoryApplicable: true}, nil
	}
	if len(selected) == 0 {
		return Manifest{}, apperrors.NewEmptySelection("select at least one inventory item")
	}

	details := map[string]any{}
	seen := make(map[string]int, len(selected))
	lines := make([]Line, 0, len(selected))
	for i, line := range selected {
		key := fmt.Sprintf("items[%d]", i)
		item, ok := catalog.Get(line.ItemID)
		switch {
		case !ok:
			details[key] = fmt.Sprintf("inventory item %q does not exist", line.ItemID)
			continue
		case line.Quantity < 1:
			details[key] = "quantity must be at least 1"
		case line.Quantity > item.AvailableQuantity:
			details[key] = fmt.Sprintf("only %d of %s available", item.AvailableQuantity, item.ProductName)
		}
		if first, dup := seen[line.ItemID]; dup {
			details[key] = fmt.Sprintf("inventory item %q already selected at items[%d]", line.ItemID, first)
			continue
		}
		seen[line.ItemID] = i
		lines = append(lines, line)
	}
	if len(details) > 0 {
		return Manifest{}, apperrors.NewValidationError("inventory selection is invalid", details)
	}
	return Manifest{lines: lines, note: note}, nil
}

// Revalidate checks a built manifest against a fresher catalog snapshot.
func Revalidate(m Manifest, catalog domain.Catalog) (Manifest, error) {
	if m.noInventoryApplicable {
		if catalog.Empty() {
			return m, nil
		}
		return Manifest{}, apperrors.NewEmptySelection("inventory is now available; select at least one item")
	}
	return BuildManifest(m.lines, catalog, m.note)
}

// Selection models the picker: one line per item, edited in place.
type Selection struct {
	lines []Line
}

// Add appends a line; re-adding a selected item is rejected and leaves the selection unchanged.
func (s *Selection) Add(itemID string, quantity int) error {
	if s.indexOf(itemID) >= 0 {
		return apperrors.NewValidationError("item already selected", map[string]any{"inventory_id": itemID})
	}
	s.lines = append(s.lines, Line{ItemID: itemID, Quantity: quantity})
	return nil
}

// SetQuantity updates the quantity of a selected item.
func (s *Selection) SetQuantity(itemID string, quantity int) error {
	idx := s.indexOf(itemID)
	if idx < 0 {
		return apperrors.NewNotFound("selected item", map[string]any{"inventory_id": itemID})
	}
	s.lines[idx].Quantity = quantity
	return nil
}

// Remove drops a selected item; removing an absent item is a no-op.
func (s *Selection) Remove(itemID string) {
	if idx := s.indexOf(itemID); idx >= 0 {
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	}
}

// Lines returns the current selection.
func (s *Selection) Lines() []Line {
	return append([]Line(nil), s.lines...)
}

func (s *Selection) indexOf(itemID string) int {
	for i, l := range s.lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}
