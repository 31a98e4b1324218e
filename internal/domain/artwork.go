package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Artwork is one record of the artwork feed. Only ID is expected to be present; every other
// field may be missing. IDs are assumed unique but duplicates are tolerated.
type Artwork struct {
	ID    string   `json:"id" yaml:"id"`
	Title string   `json:"title,omitempty" yaml:"title,omitempty"`
	Year  *int     `json:"year,omitempty" yaml:"year,omitempty"`
	Media string   `json:"media,omitempty" yaml:"media,omitempty"`
	Size  string   `json:"size,omitempty" yaml:"size,omitempty"`
	Price string   `json:"price,omitempty" yaml:"price,omitempty"`
	Sold  bool     `json:"sold,omitempty" yaml:"sold,omitempty"`
	Image string   `json:"image,omitempty" yaml:"image,omitempty"`
	Tags  []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// InvalidYear keeps a year value that was present but not a whole number, such as
	// "c. 2019". Year is nil in that case.
	InvalidYear string `json:"-" yaml:"-"`
}

// YearString renders the year in decimal, or "" when absent.
func (a Artwork) YearString() string {
	if a.Year == nil {
		return ""
	}
	return strconv.Itoa(*a.Year)
}

// HasImage reports whether the record carries an image URL.
func (a Artwork) HasImage() bool {
	return strings.TrimSpace(a.Image) != ""
}

// UnmarshalJSON accepts a year given as a number or a numeric string, and a null tag list.
// An unparsable year reads as absent and is kept in InvalidYear; it never rejects the record.
func (a *Artwork) UnmarshalJSON(data []byte) error {
	type plain Artwork
	var raw struct {
		plain
		Year  json.RawMessage `json:"year"`
		Price json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Artwork(raw.plain)

	year, err := decodeYear(raw.Year)
	if err != nil {
		a.InvalidYear = strings.TrimSpace(strings.Trim(string(bytes.TrimSpace(raw.Year)), `"`))
	}
	a.Year = year
	a.Price = decodePrice(raw.Price)
	return nil
}

func decodeYear(raw json.RawMessage) (*int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var n json.Number
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		n = json.Number(s)
	} else if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("invalid year %s", raw)
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return nil, fmt.Errorf("invalid year %q", n.String())
	}
	return &v, nil
}

// decodePrice keeps price display-ready whether the feed sends "$1,200" or 1200.
func decodePrice(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
