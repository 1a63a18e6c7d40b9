// Package snippetio reads and writes snippet packs: Spark's YAML format and
// JSON exports from other expanders.
package snippetio

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"markestedt/spark/snippet"
)

const packVersion = 1

//go:embed pack.schema.json
var packSchemaJSON []byte

var packSchema = jsonschema.MustCompileString("pack.schema.json", string(packSchemaJSON))

// Item is a snippet together with the name of its folder
type Item struct {
	Snippet snippet.Snippet
	Folder  string
}

type pack struct {
	Version  int          `yaml:"version"`
	Snippets []packRecord `yaml:"snippets"`
}

type packRecord struct {
	Name      string `yaml:"name,omitempty"`
	Shortcut  string `yaml:"shortcut"`
	Body      string `yaml:"body"`
	Folder    string `yaml:"folder,omitempty"`
	Active    *bool  `yaml:"active,omitempty"`
	MatchType string `yaml:"match_type,omitempty"`
}

// ImportYAML parses and validates a snippet pack
func ImportYAML(r io.Reader) ([]Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pack: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse pack: %w", err)
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	var p pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode pack: %w", err)
	}

	items := make([]Item, 0, len(p.Snippets))
	seen := make(map[string]bool, len(p.Snippets))
	for _, rec := range p.Snippets {
		if seen[rec.Shortcut] {
			return nil, fmt.Errorf("duplicate shortcut %s in pack", rec.Shortcut)
		}
		seen[rec.Shortcut] = true

		active := true
		if rec.Active != nil {
			active = *rec.Active
		}
		matchType := rec.MatchType
		if matchType == "" {
			matchType = snippet.MatchExact
		}
		items = append(items, Item{
			Snippet: snippet.Snippet{
				Name:      rec.Name,
				Shortcut:  rec.Shortcut,
				Body:      rec.Body,
				MatchType: matchType,
				IsActive:  active,
			},
			Folder: rec.Folder,
		})
	}

	return items, nil
}

// validate checks a decoded YAML document against the pack schema. The
// document goes through JSON first so the validator sees JSON types.
func validate(doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("pack is not representable as JSON: %w", err)
	}
	var inst any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&inst); err != nil {
		return fmt.Errorf("failed to re-decode pack: %w", err)
	}
	if err := packSchema.Validate(inst); err != nil {
		return fmt.Errorf("invalid pack: %w", err)
	}
	return nil
}

// ExportYAML writes items as a snippet pack
func ExportYAML(w io.Writer, items []Item) error {
	p := pack{Version: packVersion}
	for _, it := range items {
		active := it.Snippet.IsActive
		rec := packRecord{
			Name:     it.Snippet.Name,
			Shortcut: it.Snippet.Shortcut,
			Body:     it.Snippet.Body,
			Folder:   it.Folder,
			Active:   &active,
		}
		if it.Snippet.MatchType != "" && it.Snippet.MatchType != snippet.MatchExact {
			rec.MatchType = it.Snippet.MatchType
		}
		if rec.Name == strings.TrimPrefix(rec.Shortcut, "/") {
			rec.Name = ""
		}
		p.Snippets = append(p.Snippets, rec)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode pack: %w", err)
	}
	return enc.Close()
}
