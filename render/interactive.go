package render

import "strings"

// Interactive resolves tokens that would normally prompt the user
type Interactive interface {
	Input(name, def string) (string, bool)
	Select(name string, options []string) (string, bool)
}

// Passthrough leaves interactive tokens in the output unchanged
type Passthrough struct{}

func (Passthrough) Input(name, def string) (string, bool)               { return "", false }
func (Passthrough) Select(name string, options []string) (string, bool) { return "", false }

// Defaults answers every prompt with its default value or first option
type Defaults struct{}

func (Defaults) Input(name, def string) (string, bool) {
	return def, true
}

func (Defaults) Select(name string, options []string) (string, bool) {
	if len(options) == 0 {
		return "", false
	}
	return options[0], true
}

// ParseInteractive maps a config name to a resolver
func ParseInteractive(name string) (Interactive, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "passthrough":
		return Passthrough{}, true
	case "defaults":
		return Defaults{}, true
	}
	return nil, false
}

// splitOptions splits a select list on commas or pipes
func splitOptions(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' })
	options := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			options = append(options, f)
		}
	}
	return options
}
