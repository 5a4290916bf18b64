// Package cascade models the pick-entry form as a small finite-state machine:
// item number → DOT code → location → batch, each selection narrowing the
// inventory slice one level further. Re-selecting any upstream field clears
// everything downstream of it. The same package owns the FIFO ordering of DOT
// codes and the quantity bound a pick must satisfy.
package cascade

import (
	"fmt"
	"sort"
	"strconv"
)

// Cascade states.
const (
	StateIdle             = "idle"
	StateItemSelected     = "item_selected"
	StateDotSelected      = "dot_selected"
	StateLocationSelected = "location_selected"
	StateBatchSelected    = "batch_selected"
)

// Selection is the cascade's current value set. Zero values mean "not chosen".
type Selection struct {
	ItemNumber  string
	DotCode     string
	LocationID  int
	BatchNumber string
	Quantity    int
}

// State derives the cascade state from the selection. It is a pure function
// of the fields, never stored.
func (s Selection) State() string {
	switch {
	case s.ItemNumber == "":
		return StateIdle
	case s.DotCode == "":
		return StateItemSelected
	case s.LocationID == 0:
		return StateDotSelected
	case s.BatchNumber == "":
		return StateLocationSelected
	default:
		return StateBatchSelected
	}
}

// SelectItem resets the whole cascade to the given item.
func (s Selection) SelectItem(item string) Selection {
	return Selection{ItemNumber: item}
}

// SelectDot sets the DOT code and clears location, batch and quantity.
func (s Selection) SelectDot(dot string) Selection {
	return Selection{ItemNumber: s.ItemNumber, DotCode: dot}
}

// SelectLocation sets the location and clears batch and quantity.
func (s Selection) SelectLocation(locationID int) Selection {
	return Selection{ItemNumber: s.ItemNumber, DotCode: s.DotCode, LocationID: locationID}
}

// SelectBatch sets the batch and clears the quantity.
func (s Selection) SelectBatch(batch string) Selection {
	return Selection{ItemNumber: s.ItemNumber, DotCode: s.DotCode, LocationID: s.LocationID, BatchNumber: batch}
}

// SetQuantity sets the entered quantity. Valid only once a batch is chosen.
func (s Selection) SetQuantity(qty int) Selection {
	s.Quantity = qty
	return s
}

// Complete reports whether all four fields are set.
func (s Selection) Complete() bool {
	return s.State() == StateBatchSelected
}

// ValidateQuantity enforces the pick bound: 0 < qty ≤ min(available,
// remaining), where available is the chosen batch's on-hand quantity and
// remaining is what the order line still needs.
func ValidateQuantity(qty, available, remaining int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be greater than zero")
	}
	if qty > available {
		return fmt.Errorf("quantity %d exceeds available stock %d", qty, available)
	}
	if qty > remaining {
		return fmt.Errorf("quantity %d exceeds remaining order need %d", qty, remaining)
	}
	return nil
}

// DotOption is one DOT code slice offered to the picker. Oldest marks the
// FIFO head; the UI preselects it.
type DotOption struct {
	DotCode  string `json:"dot_code"`
	Quantity int    `json:"quantity"`
	Oldest   bool   `json:"oldest"`
}

// dotSortKey orders DOT codes oldest first. Tire DOT date codes are WWYY
// (week of manufacture, two-digit year), so year is the major key. Codes
// that do not parse sort last, after all dated stock.
func dotSortKey(dot string) int {
	if len(dot) != 4 {
		return 1 << 30
	}
	week, err1 := strconv.Atoi(dot[:2])
	year, err2 := strconv.Atoi(dot[2:])
	if err1 != nil || err2 != nil || week < 1 || week > 53 {
		return 1 << 30
	}
	return year*100 + week
}

// SortDotsFIFO orders the options oldest first and flags the FIFO head.
// Ties and unparseable codes keep their relative order.
func SortDotsFIFO(opts []DotOption) []DotOption {
	sort.SliceStable(opts, func(i, j int) bool {
		return dotSortKey(opts[i].DotCode) < dotSortKey(opts[j].DotCode)
	})
	for i := range opts {
		opts[i].Oldest = i == 0
	}
	return opts
}
