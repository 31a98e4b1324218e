package domain

// SoldMode selects which part of the collection a page lists.
type SoldMode int

const (
	// SoldAvailable lists works that are still for sale.
	SoldAvailable SoldMode = iota
	// SoldOnly lists sold works.
	SoldOnly
	// SoldBoth lists available works followed by sold works.
	SoldBoth
)

// String returns the query-string form of the mode.
func (m SoldMode) String() string {
	switch m {
	case SoldOnly:
		return "sold"
	case SoldBoth:
		return "both"
	default:
		return "available"
	}
}

// ParseSoldMode maps "available", "sold" and "both" to a mode.
func ParseSoldMode(s string) (SoldMode, bool) {
	switch s {
	case "available", "":
		return SoldAvailable, true
	case "sold":
		return SoldOnly, true
	case "both":
		return SoldBoth, true
	}
	return SoldAvailable, false
}
