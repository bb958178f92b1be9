package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxBodyLength  = 4000
	MaxEmojiLength = 32
)

var (
	slugRegex      = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	colorRegex     = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	shortcodeRegex = regexp.MustCompile(`^:[a-z0-9_+-]{1,30}:$`)
)

// Body checks a message body after trimming. An empty body is fine when
// the message carries an attachment.
func Body(body string, hasAttachment bool) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" && !hasAttachment {
		return fmt.Errorf("empty_body")
	}
	if utf8.RuneCountInString(trimmed) > MaxBodyLength {
		return fmt.Errorf("long_body")
	}
	if !utf8.ValidString(body) {
		return fmt.Errorf("bad_encoding")
	}
	return nil
}

// Emoji accepts a single emoji sequence (including skin tones, variation
// selectors and ZWJ sequences) or a ":shortcode:".
func Emoji(emoji string) error {
	if emoji == "" {
		return fmt.Errorf("empty_emoji")
	}
	if len(emoji) > MaxEmojiLength {
		return fmt.Errorf("long_emoji")
	}
	if shortcodeRegex.MatchString(emoji) {
		return nil
	}
	if !utf8.ValidString(emoji) {
		return fmt.Errorf("bad_emoji")
	}

	hasSymbol := false
	for _, r := range emoji {
		switch {
		case isEmojiJoiner(r):
		case unicode.Is(unicode.So, r) || unicode.Is(unicode.Sk, r) || isRegionalIndicator(r):
			hasSymbol = true
		case r >= '0' && r <= '9' || r == '#' || r == '*':
			// keycap bases, only valid together with U+20E3
		default:
			return fmt.Errorf("bad_emoji")
		}
	}
	if !hasSymbol {
		return fmt.Errorf("bad_emoji")
	}
	return nil
}

func isEmojiJoiner(r rune) bool {
	return r == 0x200D || // zero width joiner
		r == 0x20E3 || // combining keycap
		(r >= 0xFE00 && r <= 0xFE0F) || // variation selectors
		(r >= 0x1F3FB && r <= 0x1F3FF) || // skin tones
		(r >= 0xE0020 && r <= 0xE007F) // tag sequences
}

func isRegionalIndicator(r rune) bool {
	return r >= 0x1F1E6 && r <= 0x1F1FF
}

func Slug(slug string) error {
	if len(slug) > 64 {
		return fmt.Errorf("long_slug")
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("bad_slug")
	}
	return nil
}

func Color(color string) error {
	if color == "" {
		return nil
	}
	if !colorRegex.MatchString(color) {
		return fmt.Errorf("bad_color")
	}
	return nil
}
