// internal/filter/criteria.go
package filter

import (
	"time"
)

// Criteria describes one filter state for the equipment inventory
// (sites, cells, equipment, PLCs). It is a value type: copies are cheap,
// equality is structural, and the engine never mutates a caller's Criteria.
type Criteria struct {
	SiteIDs        []string
	CellIDs        []string
	EquipmentTypes []string
	Manufacturers  []string
	Statuses       []string

	InstalledAfter  *time.Time
	InstalledBefore *time.Time

	// IPRange holds a CIDR expression such as "10.20.0.0/16".
	IPRange string

	IncludeTags []string
	ExcludeTags []string

	SearchText string

	Page     int
	PageSize int
	SortBy   string
	SortDesc bool
}

// Clone returns a deep copy so the optimizer can normalize without
// touching the caller's value.
func (c Criteria) Clone() Criteria {
	out := c
	out.SiteIDs = copyStrings(c.SiteIDs)
	out.CellIDs = copyStrings(c.CellIDs)
	out.EquipmentTypes = copyStrings(c.EquipmentTypes)
	out.Manufacturers = copyStrings(c.Manufacturers)
	out.Statuses = copyStrings(c.Statuses)
	out.IncludeTags = copyStrings(c.IncludeTags)
	out.ExcludeTags = copyStrings(c.ExcludeTags)
	if c.InstalledAfter != nil {
		t := *c.InstalledAfter
		out.InstalledAfter = &t
	}
	if c.InstalledBefore != nil {
		t := *c.InstalledBefore
		out.InstalledBefore = &t
	}
	return out
}

// HasDateRange reports whether either installation date bound is set.
func (c Criteria) HasDateRange() bool {
	return c.InstalledAfter != nil || c.InstalledBefore != nil
}

// DateSpan returns the distance between the two date bounds, or zero
// when either bound is missing.
func (c Criteria) DateSpan() time.Duration {
	if c.InstalledAfter == nil || c.InstalledBefore == nil {
		return 0
	}
	return c.InstalledBefore.Sub(*c.InstalledAfter)
}

// HasTags reports whether any include or exclude tag is set.
func (c Criteria) HasTags() bool {
	return len(c.IncludeTags) > 0 || len(c.ExcludeTags) > 0
}

// TagCount returns the total number of include and exclude tags.
func (c Criteria) TagCount() int {
	return len(c.IncludeTags) + len(c.ExcludeTags)
}

// MultiSelects returns the named multi-value selection fields in a fixed
// order, for code that scores or inspects them uniformly.
func (c Criteria) MultiSelects() []MultiSelect {
	return []MultiSelect{
		{Name: "site_ids", Values: c.SiteIDs},
		{Name: "cell_ids", Values: c.CellIDs},
		{Name: "equipment_types", Values: c.EquipmentTypes},
		{Name: "manufacturers", Values: c.Manufacturers},
		{Name: "statuses", Values: c.Statuses},
	}
}

// MultiSelect pairs a multi-value field name with its selected values.
type MultiSelect struct {
	Name   string
	Values []string
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
