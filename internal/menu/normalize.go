package menu

import (
	"math"
	"strconv"
	"strings"
)

// ParsePrice strips everything except digits and the decimal point and parses
// the longest numeric prefix of the rest. It returns nil when no finite number
// remains.
func ParsePrice(a Amount) *float64 {
	if f, ok := a.Float(); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	}
	if a.IsZero() {
		return nil
	}
	return parseStripped(a.String())
}

// ParseCalories parses a calorie value the same way as ParsePrice and rounds
// it. Zero calories are treated as unknown.
func ParseCalories(a Amount) *int {
	f := ParsePrice(a)
	if f == nil {
		return nil
	}
	n := int(math.Round(*f))
	if n == 0 {
		return nil
	}
	return &n
}

func parseStripped(s string) *float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	num := numericPrefix(b.String())
	if num == "" {
		return nil
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// numericPrefix returns the longest leading run of s that reads as a decimal
// number, so "9.99." yields "9.99" and "1.2.3" yields "1.2".
func numericPrefix(s string) string {
	end, dot, digits := 0, false, false
	for ; end < len(s); end++ {
		if s[end] == '.' {
			if dot {
				break
			}
			dot = true
			continue
		}
		digits = true
	}
	if !digits {
		return ""
	}
	return strings.TrimSuffix(s[:end], ".")
}

// Normalize narrows candidates into persisted items. Candidates without a
// name and repeated names are dropped; the first occurrence wins.
func Normalize(cands []Candidate) []Item {
	items := make([]Item, 0, len(cands))
	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		key := c.Key()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, normalizeOne(c))
	}
	return items
}

func normalizeOne(c Candidate) Item {
	it := Item{
		Name:  strings.TrimSpace(c.Name),
		Price: ParsePrice(c.Price),
		Tags:  CleanTags(c.Tags),
	}
	if d := strings.TrimSpace(c.Description); d != "" {
		it.Description = &d
	}

	switch c.Confidence {
	case ConfidenceEstimated, ConfidenceLow:
		it.Tags = appendTagFold(it.Tags, "estimated")
	}

	if s := strings.TrimSpace(c.Section); s != "" {
		it.Section = &s
		it.Tags = appendTagFold(it.Tags, "section:"+s)
	}

	var nut Nutrition
	nut.Calories = ParseCalories(c.Calories)
	if r := strings.TrimSpace(c.Review); r != "" {
		nut.AIReview = &r
	}
	if nut.Calories != nil || nut.AIReview != nil {
		it.Nutrition = &nut
	}
	return it
}

// CleanTags trims tags and drops empty and case-insensitively repeated ones.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = appendTagFold(out, t)
	}
	return out
}

func appendTagFold(tags []string, tag string) []string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return tags
	}
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return tags
		}
	}
	return append(tags, tag)
}

// Dedupe merges item lists keeping the first item seen for each key.
func Dedupe(lists ...[]Item) []Item {
	var out []Item
	seen := map[string]struct{}{}
	for _, list := range lists {
		for _, it := range list {
			key := it.Key()
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, it)
		}
	}
	return out
}
