package engine

import "markestedt/spark/snippet"

// TokenPrefix starts every shortcut token
const TokenPrefix = '/'

// MatchToken finds the shortcut token ending at the end of runes. The token
// is the prefix followed by the longest trailing run of token characters, so
// "a/b/green" yields "/green". Runs in O(len(runes)).
func MatchToken(runes []rune) (string, bool) {
	i := len(runes)
	for i > 0 && snippet.IsShortcutRune(runes[i-1]) {
		i--
	}
	if i == len(runes) || i == 0 || runes[i-1] != TokenPrefix {
		return "", false
	}
	return string(runes[i-1:]), true
}
