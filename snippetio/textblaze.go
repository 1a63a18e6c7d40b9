package snippetio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"markestedt/spark/snippet"
)

// ImportTextBlaze reads a TextBlaze export ({"folders":[{"name","snippets":
// [{"name","shortcut","text"}]}]}). A top-level "snippets" array or a bare
// array of snippets is accepted too, and "content" may stand in for "text".
func ImportTextBlaze(data []byte) ([]Item, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)

	var items []Item
	var skipped int
	add := func(folder string, s gjson.Result) {
		it, ok := textBlazeItem(folder, s)
		if !ok {
			skipped++
			return
		}
		items = append(items, it)
	}

	switch {
	case root.Get("folders").IsArray():
		root.Get("folders").ForEach(func(_, f gjson.Result) bool {
			folder := strings.TrimSpace(f.Get("name").String())
			f.Get("snippets").ForEach(func(_, s gjson.Result) bool {
				add(folder, s)
				return true
			})
			return true
		})
	case root.Get("snippets").IsArray():
		root.Get("snippets").ForEach(func(_, s gjson.Result) bool {
			add("", s)
			return true
		})
	case root.IsArray():
		root.ForEach(func(_, s gjson.Result) bool {
			add("", s)
			return true
		})
	default:
		return nil, errors.New("no folders or snippets found")
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no usable snippets (%d skipped)", skipped)
	}
	return items, nil
}

func textBlazeItem(folder string, s gjson.Result) (Item, bool) {
	shortcut := snippet.NormalizeShortcut(s.Get("shortcut").String())
	body := s.Get("text").String()
	if body == "" {
		body = s.Get("content").String()
	}
	if !snippet.ValidShortcut(shortcut) || body == "" {
		return Item{}, false
	}

	return Item{
		Snippet: snippet.Snippet{
			Name:      strings.TrimSpace(s.Get("name").String()),
			Shortcut:  shortcut,
			Body:      body,
			MatchType: snippet.MatchExact,
			IsActive:  true,
		},
		Folder: folder,
	}, true
}
