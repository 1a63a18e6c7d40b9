package engine

import (
	"path/filepath"
	"strings"
)

// normalizeApp lowercases an application name and drops any directory and
// ".exe" suffix, so "C:\Program Files\KeePass\KeePass.exe" and "keepass"
// compare equal
func normalizeApp(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ToLower(name)
	if filepath.Ext(name) == ".exe" {
		name = strings.TrimSuffix(name, ".exe")
	}
	return name
}

// excludedSet holds normalized application names
type excludedSet map[string]struct{}

func newExcludedSet(apps []string) excludedSet {
	set := make(excludedSet, len(apps))
	for _, app := range apps {
		if n := normalizeApp(app); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func (s excludedSet) contains(app string) bool {
	_, ok := s[normalizeApp(app)]
	return ok
}
