package extract

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

// maxDepth stops the walk on absurdly nested model output.
const maxDepth = 64

var (
	nameKeys        = []string{"name", "title", "item", "dish", "label", "menu_item"}
	descriptionKeys = []string{"description", "details", "summary", "about", "note"}
	priceKeys       = []string{"price", "price_usd", "priceUsd", "cost", "amount", "price_value"}
	calorieKeys     = []string{"calories", "kcal", "calorie", "energy"}
	tagKeys         = []string{"tags", "labels", "attributes", "dietary", "keywords", "flags"}
	reviewKeys      = []string{"review", "blurb", "aiReview", "ai_review"}
	confidenceKeys  = []string{"confidence", "certainty", "quality"}
	sectionKeys     = []string{"section", "category", "group"}

	// collectionKeys are visited before any other key of the root object.
	collectionKeys = []string{"items", "menu", "menuItems", "dishes", "entries", "products", "options", "sections"}

	fieldKeys = keySet(nameKeys, descriptionKeys, priceKeys, calorieKeys, tagKeys, reviewKeys, confidenceKeys, sectionKeys)
	tagKeySet = keySet(tagKeys)

	tagSeparators = strings.NewReplacer(";", ",", "|", ",")
)

type nodeID struct {
	kind reflect.Kind
	ptr  uintptr
	n    int
}

type collector struct {
	visited map[nodeID]struct{}
	seen    map[string]struct{}
	items   []menu.Candidate
}

// Collect walks an arbitrary decoded JSON value and returns every plausible
// menu item in it, deduplicated by name key. Items nested under an "items"
// array inherit the parent's name as their section.
func Collect(value any) []menu.Candidate {
	c := &collector{
		visited: map[nodeID]struct{}{},
		seen:    map[string]struct{}{},
	}
	if root, ok := value.(map[string]any); ok {
		for _, key := range collectionKeys {
			if child, ok := root[key]; ok && child != nil {
				c.visit(child, 0)
			}
		}
	}
	c.visit(value, 0)
	return c.items
}

func (c *collector) visit(value any, depth int) {
	if depth > maxDepth {
		return
	}
	switch v := value.(type) {
	case string:
		c.addText(v)
	case []any:
		if !c.enter(v) {
			return
		}
		for _, entry := range v {
			switch e := entry.(type) {
			case map[string]any:
				c.collect(e, "", depth+1)
				c.visit(e, depth+1)
			case string:
				c.addText(e)
			case []any:
				c.visit(e, depth+1)
			}
		}
	case map[string]any:
		if !c.enter(v) {
			return
		}
		c.collect(v, "", depth)
		for _, key := range sortedKeys(v) {
			if _, isTags := tagKeySet[key]; isTags {
				continue
			}
			switch child := v[key].(type) {
			case map[string]any, []any:
				c.visit(child, depth+1)
			case string:
				if _, isField := fieldKeys[key]; !isField {
					c.addText(child)
				}
			}
		}
	}
}

// enter marks a container as visited and reports whether it was new.
func (c *collector) enter(v any) bool {
	rv := reflect.ValueOf(v)
	if rv.Len() == 0 {
		return false
	}
	id := nodeID{kind: rv.Kind(), ptr: rv.Pointer(), n: rv.Len()}
	if _, ok := c.visited[id]; ok {
		return false
	}
	c.visited[id] = struct{}{}
	return true
}

// collect records node as a candidate and descends into its items array.
func (c *collector) collect(node map[string]any, section string, depth int) {
	if depth > maxDepth {
		return
	}
	if children, ok := node["items"].([]any); ok && len(children) > 0 {
		next := section
		if name, ok := node["name"].(string); ok && strings.TrimSpace(name) != "" {
			next = strings.TrimSpace(name)
		}
		for _, child := range children {
			if m, ok := child.(map[string]any); ok {
				c.collect(m, next, depth+1)
			}
		}
	}

	cand, ok := candidateFrom(node, section)
	if !ok {
		return
	}
	c.add(cand)
}

func (c *collector) add(cand menu.Candidate) {
	key := cand.Key()
	if key == "" {
		return
	}
	if _, dup := c.seen[key]; dup {
		return
	}
	c.seen[key] = struct{}{}
	c.items = append(c.items, cand)
}

func (c *collector) addText(s string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	for _, cand := range ItemsFromText(s) {
		c.add(cand)
	}
}

func candidateFrom(node map[string]any, inherited string) (menu.Candidate, bool) {
	price, hasPrice := pickAmount(node, priceKeys)
	if _, isSection := node["items"].([]any); isSection && !hasPrice {
		return menu.Candidate{}, false
	}

	name := pickText(node, nameKeys)
	if name == "" {
		return menu.Candidate{}, false
	}

	calories, _ := pickAmount(node, calorieKeys)
	section := pickText(node, sectionKeys)
	if section == "" {
		section = inherited
	}

	return menu.Candidate{
		Name:        name,
		Description: pickText(node, descriptionKeys),
		Price:       price,
		Calories:    calories,
		Tags:        pickTags(node),
		Review:      pickText(node, reviewKeys),
		Confidence:  menu.ParseConfidence(pickText(node, confidenceKeys)),
		Section:     section,
	}, true
}

func pickText(node map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := node[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func pickAmount(node map[string]any, keys []string) (menu.Amount, bool) {
	for _, k := range keys {
		switch v := node[k].(type) {
		case float64:
			return menu.Number(v), true
		case string:
			if strings.TrimSpace(v) != "" {
				return menu.Text(v), true
			}
		}
	}
	return menu.Amount{}, false
}

func pickTags(node map[string]any) []string {
	for _, k := range tagKeys {
		switch v := node[k].(type) {
		case []any:
			tags := make([]string, 0, len(v))
			for _, t := range v {
				switch tv := t.(type) {
				case string:
					tags = append(tags, tv)
				case float64:
					tags = append(tags, strconv.FormatFloat(tv, 'f', -1, 64))
				case bool:
					tags = append(tags, strconv.FormatBool(tv))
				}
			}
			return menu.CleanTags(tags)
		case string:
			return menu.CleanTags(strings.Split(tagSeparators.Replace(v), ","))
		}
	}
	return nil
}

func keySet(lists ...[]string) map[string]struct{} {
	m := map[string]struct{}{}
	for _, keys := range lists {
		for _, k := range keys {
			m[k] = struct{}{}
		}
	}
	return m
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
