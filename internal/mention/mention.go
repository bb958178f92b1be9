package mention

import (
	"editorchat-backend/internal/models"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Resolve returns the ids of roster users mentioned in body, each once, in
// order of first appearance.
//
// A mention is "@" at the start of the body or after whitespace, followed
// by a display name (case-insensitive). The name must not run straight into
// another name character, so "@Janet" never mentions "Jane". When several
// names fit at the same spot the longest one wins, which is what the
// autocomplete inserts.
func Resolve(body string, roster []models.User) []int64 {
	mentioned := []int64{}
	seen := make(map[int64]bool)

	prev := ' '
	for i := 0; i < len(body); {
		r, size := utf8.DecodeRuneInString(body[i:])
		if r != '@' || !unicode.IsSpace(prev) {
			prev = r
			i += size
			continue
		}

		rest := body[i+size:]
		bestID, bestLen := int64(0), 0
		for _, user := range roster {
			if user.DisplayName == "" {
				continue
			}
			n, ok := matchName(rest, user.DisplayName)
			if ok && n > bestLen {
				bestID, bestLen = user.ID, n
			}
		}

		if bestLen == 0 {
			prev = r
			i += size
			continue
		}

		if !seen[bestID] {
			seen[bestID] = true
			mentioned = append(mentioned, bestID)
		}

		i += size + bestLen
		last, _ := utf8.DecodeLastRuneInString(body[:i])
		prev = last
	}

	return mentioned
}

// matchName reports how many bytes of text the name covers when text
// starts with it and the name ends on a boundary.
func matchName(text string, name string) (int, bool) {
	t := text
	for _, nr := range name {
		tr, size := utf8.DecodeRuneInString(t)
		if size == 0 || !equalFold(tr, nr) {
			return 0, false
		}
		t = t[size:]
	}

	next, size := utf8.DecodeRuneInString(t)
	if size > 0 && isNameRune(next) {
		return 0, false
	}
	return len(text) - len(t), true
}

func equalFold(a, b rune) bool {
	return a == b || unicode.ToLower(a) == unicode.ToLower(b)
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'
}

// Complete lists roster users whose display name starts with query,
// shortest names first. It is the same matching Resolve uses, so a name
// picked from this list always resolves back to the same user.
func Complete(query string, roster []models.User, limit int) []models.User {
	query = strings.TrimPrefix(query, "@")
	matches := []models.User{}

	for _, user := range roster {
		if user.DisplayName == "" {
			continue
		}
		if hasPrefixFold(user.DisplayName, query) {
			matches = append(matches, user)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(matches[i].DisplayName), utf8.RuneCountInString(matches[j].DisplayName)
		if li != lj {
			return li < lj
		}
		return strings.ToLower(matches[i].DisplayName) < strings.ToLower(matches[j].DisplayName)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func hasPrefixFold(s string, prefix string) bool {
	for _, pr := range prefix {
		sr, size := utf8.DecodeRuneInString(s)
		if size == 0 || !equalFold(sr, pr) {
			return false
		}
		s = s[size:]
	}
	return true
}
