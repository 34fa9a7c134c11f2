package extract

import "strings"

// flags are the paging signals a batch reply may carry next to its items.
type flags struct {
	hasMore   bool
	truncated bool
}

// flagsOf reads has_more and truncated from a decoded reply. Booleans are
// taken as-is, strings compare case-insensitively against "true", anything
// else counts as false.
func flagsOf(value any) flags {
	m, ok := value.(map[string]any)
	if !ok {
		return flags{}
	}
	return flags{
		hasMore:   truthy(m["has_more"]) || truthy(m["hasMore"]),
		truncated: truthy(m["truncated"]),
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	}
	return false
}
