package validator_test

import (
	"editorchat-backend/internal/validator"
	"fmt"
	"strings"
	"testing"
)

func TestBody(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		hasAttachment bool
		expectedError error
	}{
		{
			name:          "Valid: Plain text",
			body:          "Draft is ready for review",
			expectedError: nil,
		},
		{
			name:          "Valid: Empty body with attachment",
			body:          "   ",
			hasAttachment: true,
			expectedError: nil,
		},
		{
			name:          "Valid: Maximum length",
			body:          strings.Repeat("a", validator.MaxBodyLength),
			expectedError: nil,
		},
		{
			name:          "Error: Empty body",
			body:          "",
			expectedError: fmt.Errorf("empty_body"),
		},
		{
			name:          "Error: Only whitespace",
			body:          " \n\t ",
			expectedError: fmt.Errorf("empty_body"),
		},
		{
			name:          "Error: Too long",
			body:          strings.Repeat("a", validator.MaxBodyLength+1),
			expectedError: fmt.Errorf("long_body"),
		},
		{
			name:          "Error: Invalid UTF-8",
			body:          "ok \xff",
			expectedError: fmt.Errorf("bad_encoding"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Body(tc.body, tc.hasAttachment)
			checkError(t, "Body", tc.body, err, tc.expectedError)
		})
	}
}

func TestEmoji(t *testing.T) {
	tests := []struct {
		name          string
		emoji         string
		expectedError error
	}{
		{name: "Valid: Thumbs up", emoji: "👍", expectedError: nil},
		{name: "Valid: Fire", emoji: "🔥", expectedError: nil},
		{name: "Valid: Skin tone", emoji: "👍🏽", expectedError: nil},
		{name: "Valid: ZWJ sequence", emoji: "👩‍💻", expectedError: nil},
		{name: "Valid: Heart with variation selector", emoji: "❤️", expectedError: nil},
		{name: "Valid: Flag", emoji: "🇩🇪", expectedError: nil},
		{name: "Valid: Shortcode", emoji: ":white_check_mark:", expectedError: nil},
		{name: "Error: Empty", emoji: "", expectedError: fmt.Errorf("empty_emoji")},
		{name: "Error: Plain word", emoji: "like", expectedError: fmt.Errorf("bad_emoji")},
		{name: "Error: Emoji with text", emoji: "👍ok", expectedError: fmt.Errorf("bad_emoji")},
		{name: "Error: Digits only", emoji: "12", expectedError: fmt.Errorf("bad_emoji")},
		{name: "Error: Too long", emoji: strings.Repeat("🔥", 9), expectedError: fmt.Errorf("long_emoji")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Emoji(tc.emoji)
			checkError(t, "Emoji", tc.emoji, err, tc.expectedError)
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name          string
		slug          string
		expectedError error
	}{
		{name: "Valid: Single word", slug: "general", expectedError: nil},
		{name: "Valid: Hyphenated", slug: "tech-desk-2", expectedError: nil},
		{name: "Error: Uppercase", slug: "General", expectedError: fmt.Errorf("bad_slug")},
		{name: "Error: Leading hyphen", slug: "-news", expectedError: fmt.Errorf("bad_slug")},
		{name: "Error: Double hyphen", slug: "news--desk", expectedError: fmt.Errorf("bad_slug")},
		{name: "Error: Empty", slug: "", expectedError: fmt.Errorf("bad_slug")},
		{name: "Error: Too long", slug: strings.Repeat("a", 65), expectedError: fmt.Errorf("long_slug")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Slug(tc.slug)
			checkError(t, "Slug", tc.slug, err, tc.expectedError)
		})
	}
}

func TestColor(t *testing.T) {
	tests := []struct {
		name          string
		color         string
		expectedError error
	}{
		{name: "Valid: Empty", color: "", expectedError: nil},
		{name: "Valid: Hex", color: "#1a2B3c", expectedError: nil},
		{name: "Error: Short hex", color: "#fff", expectedError: fmt.Errorf("bad_color")},
		{name: "Error: Name", color: "red", expectedError: fmt.Errorf("bad_color")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Color(tc.color)
			checkError(t, "Color", tc.color, err, tc.expectedError)
		})
	}
}

func checkError(t *testing.T, fn string, input string, err error, expectedError error) {
	t.Helper()

	if expectedError == nil {
		if err != nil {
			t.Errorf("%s(%q) failed unexpectedly: got error %v, want nil", fn, input, err)
		}
		return
	}

	if err == nil {
		t.Errorf("%s(%q) passed unexpectedly: got nil, want error %v", fn, input, expectedError)
		return
	}

	if err.Error() != expectedError.Error() {
		t.Errorf("%s(%q) got error %q, want error %q", fn, input, err.Error(), expectedError.Error())
	}
}
