package artifacts

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SearchResult locates a sub-item within an artifact's content.
type SearchResult struct {
	// Item is the matched element decoded as a generic map.
	Item map[string]any
	// Path is the JSON location of the matched element, e.g.
	// "stories[2]" or "categories[0].items[3]".
	Path string
}

// SearchStrategy finds a sub-item inside artifact content by fuzzy text
// match. Returns nil when nothing matches.
type SearchStrategy interface {
	FindItem(content json.RawMessage, query string) *SearchResult
}

// StorySearch matches stories on title or action text.
type StorySearch struct{}

func (StorySearch) FindItem(content json.RawMessage, query string) *SearchResult {
	var set StorySet
	if err := json.Unmarshal(content, &set); err != nil {
		return nil
	}
	query = strings.ToLower(query)
	for i, s := range set.Stories {
		if strings.Contains(strings.ToLower(s.Title), query) ||
			strings.Contains(strings.ToLower(s.IWantTo), query) {
			return &SearchResult{Item: toMap(s), Path: indexPath("stories", i)}
		}
	}
	return nil
}

// UseCaseSearch matches use cases on title.
type UseCaseSearch struct{}

func (UseCaseSearch) FindItem(content json.RawMessage, query string) *SearchResult {
	var set UseCaseSet
	if err := json.Unmarshal(content, &set); err != nil {
		return nil
	}
	query = strings.ToLower(query)
	for i, uc := range set.UseCases {
		if strings.Contains(strings.ToLower(uc.Title), query) {
			return &SearchResult{Item: toMap(uc), Path: indexPath("use_cases", i)}
		}
	}
	return nil
}

// WorkbookSearch matches items nested under categories on their text.
type WorkbookSearch struct{}

func (WorkbookSearch) FindItem(content json.RawMessage, query string) *SearchResult {
	var wb Workbook
	if err := json.Unmarshal(content, &wb); err != nil {
		return nil
	}
	query = strings.ToLower(query)
	for ci, cat := range wb.Categories {
		for ii, item := range cat.Items {
			if strings.Contains(strings.ToLower(item.Text), query) {
				return &SearchResult{
					Item: toMap(item),
					Path: indexPath("categories", ci) + "." + indexPath("items", ii),
				}
			}
		}
	}
	return nil
}

func toMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func indexPath(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}
