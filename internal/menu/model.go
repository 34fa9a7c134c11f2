package menu

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Confidence is the advisory certainty attached to an extracted item.
type Confidence string

const (
	ConfidenceHigh      Confidence = "high"
	ConfidenceMedium    Confidence = "medium"
	ConfidenceLow       Confidence = "low"
	ConfidenceEstimated Confidence = "estimated"
)

// ParseConfidence maps free text onto a Confidence. Unknown values are kept
// lowercased so nothing the model said is lost.
func ParseConfidence(s string) Confidence {
	return Confidence(strings.ToLower(strings.TrimSpace(s)))
}

// Amount is a price or calorie value exactly as the model reported it:
// a number, a string, or nothing.
type Amount struct {
	num   float64
	text  string
	isNum bool
	set   bool
}

// Number returns an Amount holding a numeric value.
func Number(f float64) Amount {
	return Amount{num: f, isNum: true, set: true}
}

// Text returns an Amount holding a textual value such as "$12.50".
func Text(s string) Amount {
	return Amount{text: s, set: true}
}

// IsZero reports whether no value was recorded.
func (a Amount) IsZero() bool { return !a.set }

// Float returns the numeric value when the Amount holds a number.
func (a Amount) Float() (float64, bool) {
	return a.num, a.set && a.isNum
}

// String renders the raw value.
func (a Amount) String() string {
	switch {
	case !a.set:
		return ""
	case a.isNum:
		return strconv.FormatFloat(a.num, 'f', -1, 64)
	default:
		return a.text
	}
}

// MarshalJSON encodes the raw value as a JSON number, string or null.
func (a Amount) MarshalJSON() ([]byte, error) {
	switch {
	case !a.set:
		return []byte("null"), nil
	case a.isNum:
		return json.Marshal(a.num)
	default:
		return json.Marshal(a.text)
	}
}

// Candidate is a provisional menu item produced by the collector or the prose
// fallback. Empty strings stand for absent values.
type Candidate struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       Amount     `json:"price"`
	Calories    Amount     `json:"calories"`
	Tags        []string   `json:"tags,omitempty"`
	Review      string     `json:"review,omitempty"`
	Confidence  Confidence `json:"confidence,omitempty"`
	Section     string     `json:"section,omitempty"`
}

// Key returns the dedup key of the candidate.
func (c Candidate) Key() string { return Key(c.Name) }

// Nutrition holds the per-item nutrition block.
type Nutrition struct {
	Calories *int    `json:"calories" yaml:"calories"`
	AIReview *string `json:"ai_review" yaml:"ai_review"`
}

// Item is the normalized, persisted form of a menu item.
type Item struct {
	Name        string     `json:"name" yaml:"name"`
	Description *string    `json:"description" yaml:"description"`
	Price       *float64   `json:"price" yaml:"price"`
	Section     *string    `json:"section" yaml:"section"`
	Tags        []string   `json:"tags" yaml:"tags"`
	Nutrition   *Nutrition `json:"nutrition,omitempty" yaml:"nutrition,omitempty"`
}

// Key returns the dedup key of the item.
func (it Item) Key() string { return Key(it.Name) }

// Sink receives a finished menu for a restaurant. Implementations replace any
// previously stored menu for the same restaurant.
type Sink interface {
	SaveMenu(ctx context.Context, restaurantID string, items []Item) error
}

// Key is the case-insensitive uniqueness key for a dish name.
func Key(name string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(name)))
}
