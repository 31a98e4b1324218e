// Package gallery derives the visible artwork list and drives the lightbox.
package gallery

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xotten/portfolio/internal/domain"
)

// AllTags is the tag selector that applies no restriction.
const AllTags = "all"

// Caption colours.
const (
	CaptionGreen = "rgba(70,140,95,0.92)"
	CaptionSand  = "rgba(232, 222, 199, 0.95)"
)

// Criteria are the user-selected filter parameters plus the page's sold predicate.
type Criteria struct {
	Query string
	Tag   string
	Sold  domain.SoldMode
}

// fold applies Unicode case folding. Casers are stateful, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Filter returns the records matching text AND tag AND the sold predicate, in their
// original relative order. SoldBoth yields the available matches followed by the sold ones.
func Filter(items []domain.Artwork, c Criteria) []domain.Artwork {
	query := fold(strings.TrimSpace(c.Query))
	tag := strings.TrimSpace(c.Tag)
	anyTag := tag == "" || fold(tag) == fold(AllTags)
	tag = fold(tag)

	var available, sold []domain.Artwork
	for _, a := range items {
		if !matchesText(a, query) || (!anyTag && !hasTag(a, tag)) {
			continue
		}
		if a.Sold {
			sold = append(sold, a)
		} else {
			available = append(available, a)
		}
	}

	switch c.Sold {
	case domain.SoldOnly:
		return nonNil(sold)
	case domain.SoldBoth:
		return nonNil(append(available, sold...))
	default:
		return nonNil(available)
	}
}

func nonNil(items []domain.Artwork) []domain.Artwork {
	if items == nil {
		return []domain.Artwork{}
	}
	return items
}

func matchesText(a domain.Artwork, foldedQuery string) bool {
	if foldedQuery == "" {
		return true
	}
	for _, field := range []string{a.Title, a.Media, a.Size, a.YearString()} {
		if field != "" && strings.Contains(fold(field), foldedQuery) {
			return true
		}
	}
	for _, t := range a.Tags {
		if strings.Contains(fold(t), foldedQuery) {
			return true
		}
	}
	return false
}

func hasTag(a domain.Artwork, foldedTag string) bool {
	for _, t := range a.Tags {
		if fold(strings.TrimSpace(t)) == foldedTag {
			return true
		}
	}
	return false
}

// TagVocabulary returns "all" followed by the lower-cased, trimmed, deduplicated and
// ascending-sorted union of tags. Empty tags and a literal "all" tag are dropped.
func TagVocabulary(items []domain.Artwork) []string {
	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{})
	var tags []string
	for _, a := range items {
		for _, t := range a.Tags {
			norm := lower.String(strings.TrimSpace(t))
			if norm == "" || norm == AllTags {
				continue
			}
			if _, ok := seen[norm]; ok {
				continue
			}
			seen[norm] = struct{}{}
			tags = append(tags, norm)
		}
	}
	sort.Strings(tags)
	return append([]string{AllTags}, tags...)
}

// CaptionColor is green when any tag is "green" or "nature", sand otherwise.
func CaptionColor(tags []string) string {
	for _, t := range tags {
		switch fold(strings.TrimSpace(t)) {
		case "green", "nature":
			return CaptionGreen
		}
	}
	return CaptionSand
}

// CaptionLine is "title · size", or just the title when there is no size.
func CaptionLine(a domain.Artwork) string {
	if a.Size == "" {
		return a.Title
	}
	return a.Title + " · " + a.Size
}
