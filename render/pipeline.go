package render

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Pass substitutes one class of variable token
type Pass struct {
	Name    string
	Pattern *regexp.Regexp
	// Replace returns the substitution for a match. Returning false leaves
	// the token text as typed.
	Replace func(ctx context.Context, match []string) (string, bool)
}

// segment is a run of output text. Resolved segments came from a
// substitution (or a token left verbatim) and are not scanned again.
type segment struct {
	text     string
	resolved bool
}

// Pipeline runs a series of passes in sequence. Each pass scans the text
// left to right once; nothing a pass produces is scanned by any later pass.
type Pipeline struct {
	passes []Pass
}

// NewPipeline creates a new substitution pipeline
func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{
		passes: passes,
	}
}

// AddPass adds a pass to the pipeline
func (p *Pipeline) AddPass(pass Pass) {
	p.passes = append(p.passes, pass)
}

// Process runs all passes in sequence
func (p *Pipeline) Process(ctx context.Context, text string) string {
	segs := []segment{{text: text}}

	for _, pass := range p.passes {
		next := make([]segment, 0, len(segs))
		for _, seg := range segs {
			if seg.resolved {
				next = append(next, seg)
				continue
			}
			next = append(next, apply(ctx, pass, seg.text)...)
		}
		segs = next
	}

	var b strings.Builder
	for _, seg := range segs {
		b.WriteString(seg.text)
	}
	return b.String()
}

func apply(ctx context.Context, pass Pass, text string) []segment {
	locs := pass.Pattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return []segment{{text: text}}
	}

	segs := make([]segment, 0, 2*len(locs)+1)
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			segs = append(segs, segment{text: text[last:loc[0]]})
		}

		match := make([]string, len(loc)/2)
		for i := range match {
			if loc[2*i] >= 0 {
				match[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}

		out, ok := pass.Replace(ctx, match)
		if !ok {
			slog.Debug("Leaving token unresolved", "pass", pass.Name, "token", match[0])
			out = match[0]
		}
		segs = append(segs, segment{text: out, resolved: true})
		last = loc[1]
	}
	if last < len(text) {
		segs = append(segs, segment{text: text[last:]})
	}
	return segs
}
