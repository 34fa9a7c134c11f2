package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

// MaxProseItems bounds how many candidates one prose conversion may return.
const MaxProseItems = 60

var (
	fenceMarker   = regexp.MustCompile("(?i)```(?:json|text|markdown)?")
	blankLines    = regexp.MustCompile(`\n\s*\n`)
	listMarker    = regexp.MustCompile(`^(?:[-*•]\s*|\d+[.)]\s+)`)
	dollarPrice   = regexp.MustCompile(`\$\s?\d{1,4}(?:\.\d{1,2})?`)
	barePrice     = regexp.MustCompile(`\b\d{1,4}(?:\.\d{1,2})?\b`)
	calorieToken  = regexp.MustCompile(`(?i)\b(\d{2,4})\s*(?:kcal|calories|calorie|cals?)\b`)
	leadIn        = regexp.MustCompile(`(?i)^[^:$\d]{0,80}\b(?:menu|items|dishes|options|following|offer|have|here)\b[^:$\d]*:\s*`)
	nameSeparator = regexp.MustCompile(`^(.*?)(?:\s[-–—:]\s|:\s|\.\s+)(.+)$`)
	indexPrefix   = regexp.MustCompile(`^[\d. )-]+`)
	trailingParen = regexp.MustCompile(`\s*\(([^()]*)\)\s*$`)
	multiSpace    = regexp.MustCompile(`\s+`)
	pieceSplit    = regexp.MustCompile(`[,;]`)
)

var skipPrefixes = []string{"note:", "total:", "serves"}

var dietaryKeywords = []struct{ key, tag string }{
	{"vegan", "vegan"},
	{"vegetarian", "vegetarian"},
	{"gluten-free", "gluten-free"},
	{"gluten free", "gluten-free"},
	{"spicy", "spicy"},
	{"keto", "keto"},
	{"halal", "halal"},
	{"organic", "organic"},
	{"dairy-free", "dairy-free"},
	{"dairy free", "dairy-free"},
}

type segment struct {
	text   string
	listed bool
}

// ItemsFromText turns narrated model output into best-effort candidates.
// Every candidate is marked as estimated.
func ItemsFromText(text string) []menu.Candidate {
	cleaned := fenceMarker.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(strings.ReplaceAll(cleaned, "\r", ""))
	if cleaned == "" {
		return nil
	}

	var items []menu.Candidate
	seen := map[string]struct{}{}
	for _, seg := range splitSegments(cleaned) {
		for _, piece := range splitPricedPieces(seg) {
			c, ok := parseSegment(piece)
			if !ok {
				continue
			}
			key := c.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			items = append(items, c)
			if len(items) >= MaxProseItems {
				return items
			}
		}
	}
	return items
}

func splitSegments(text string) []segment {
	var segs []segment
	for _, p := range blankLines.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			segs = append(segs, splitLines(p)...)
		}
	}
	if len(segs) == 0 {
		return []segment{{text: text}}
	}
	return segs
}

// splitLines segments one paragraph. With list markers present, each marker
// opens a segment and unmarked lines continue it. Without markers every
// priced line is its own segment and priceless lines continue the previous
// one.
func splitLines(paragraph string) []segment {
	lines := strings.Split(paragraph, "\n")
	hasMarkers := false
	for _, line := range lines {
		if listMarker.MatchString(strings.TrimSpace(line)) {
			hasMarkers = true
			break
		}
	}

	var segs []segment
	var current []string
	currentListed := false
	flush := func() {
		if len(current) > 0 {
			segs = append(segs, segment{text: strings.Join(current, " "), listed: currentListed})
			current = nil
		}
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case hasMarkers && listMarker.MatchString(line):
			flush()
			current = []string{listMarker.ReplaceAllString(line, "")}
			currentListed = true
		case isMetadata(line):
			flush()
			current = []string{line}
			currentListed = false
		case hasMarkers, len(current) > 0 && !hasPrice(line):
			current = append(current, line)
		default:
			flush()
			current = []string{line}
			currentListed = false
		}
	}
	flush()
	return segs
}

func isMetadata(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range skipPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func hasPrice(s string) bool {
	s = calorieToken.ReplaceAllString(s, "")
	return dollarPrice.MatchString(s) || barePrice.MatchString(s)
}

// splitPricedPieces breaks a sentence naming several priced dishes into one
// piece per dish. Pieces without a price describe the priced piece before
// them; leading ones are glued to the first priced piece.
func splitPricedPieces(seg segment) []segment {
	seg.text = stripLeadIn(seg.text)

	withoutCalories := calorieToken.ReplaceAllString(seg.text, "")
	prices := len(dollarPrice.FindAllString(withoutCalories, -1))
	if prices == 0 {
		prices = len(barePrice.FindAllString(withoutCalories, -1))
	}
	if prices < 2 || !pieceSplit.MatchString(seg.text) {
		return []segment{seg}
	}

	var (
		pieces    []segment
		pending   []string
		described bool
	)
	for _, part := range pieceSplit.Split(seg.text, -1) {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			continue
		case hasPrice(part):
			pending = append(pending, part)
			pieces = append(pieces, segment{text: strings.Join(pending, ", "), listed: seg.listed})
			pending, described = nil, false
		case len(pieces) > 0:
			// " - " lets parseSegment split the name from the description.
			last := &pieces[len(pieces)-1]
			if described {
				last.text += ", " + part
			} else {
				last.text += " - " + part
				described = true
			}
		default:
			pending = append(pending, part)
		}
	}
	return pieces
}

func stripLeadIn(s string) string {
	if loc := leadIn.FindStringIndex(s); loc != nil && loc[1] < len(s) {
		return s[loc[1]:]
	}
	return s
}

func parseSegment(seg segment) (menu.Candidate, bool) {
	working := strings.TrimSpace(multiSpace.ReplaceAllString(seg.text, " "))
	if working == "" {
		return menu.Candidate{}, false
	}
	if isMetadata(working) {
		return menu.Candidate{}, false
	}

	c := menu.Candidate{Confidence: menu.ConfidenceEstimated}

	if m := calorieToken.FindStringSubmatchIndex(working); m != nil {
		if n, err := strconv.Atoi(working[m[2]:m[3]]); err == nil {
			c.Calories = menu.Number(float64(n))
		}
		working = working[:m[0]] + " " + working[m[1]:]
	}

	loc := dollarPrice.FindStringIndex(working)
	if loc == nil {
		loc = barePrice.FindStringIndex(working)
	}
	if loc != nil {
		c.Price = menu.Text(working[loc[0]:loc[1]])
		working = working[:loc[0]] + " " + working[loc[1]:]
	}

	if c.Price.IsZero() && c.Calories.IsZero() && !seg.listed {
		// narration, not a dish
		return menu.Candidate{}, false
	}

	working = strings.TrimSpace(multiSpace.ReplaceAllString(working, " "))

	name, desc := working, ""
	if m := nameSeparator.FindStringSubmatch(working); m != nil {
		name, desc = m[1], m[2]
	}

	name = indexPrefix.ReplaceAllString(name, "")
	if m := trailingParen.FindStringSubmatchIndex(name); m != nil {
		inner := strings.TrimSpace(name[m[2]:m[3]])
		name = name[:m[0]]
		if desc == "" {
			desc = inner
		} else if inner != "" {
			desc = inner + ". " + desc
		}
	}
	name = strings.Trim(name, " *_`\"'-–—:;,.")
	if name == "" {
		return menu.Candidate{}, false
	}

	c.Name = name
	c.Description = strings.Trim(desc, " -–—:;,")
	c.Tags = dietaryTags(seg.text)
	return c, true
}

func dietaryTags(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for _, kw := range dietaryKeywords {
		if !strings.Contains(lower, kw.key) {
			continue
		}
		dup := false
		for _, t := range tags {
			if t == kw.tag {
				dup = true
				break
			}
		}
		if !dup {
			tags = append(tags, kw.tag)
		}
	}
	return tags
}
