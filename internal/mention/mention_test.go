package mention_test

import (
	"editorchat-backend/internal/mention"
	"editorchat-backend/internal/models"
	"slices"
	"testing"
)

var roster = []models.User{
	{ID: 1, DisplayName: "Jane"},
	{ID: 2, DisplayName: "JaneDoe"},
	{ID: 3, DisplayName: "John"},
	{ID: 4, DisplayName: "John Smith"},
	{ID: 5, DisplayName: "Zoë"},
	{ID: 6, DisplayName: ""},
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []int64
	}{
		{
			name: "Both prefix-sharing names, longest match at each token",
			body: "Hello @Jane and @JaneDoe",
			want: []int64{1, 2},
		},
		{
			name: "Case insensitive",
			body: "@jane please check",
			want: []int64{1},
		},
		{
			name: "Each user once",
			body: "@Jane @jane @JANE",
			want: []int64{1},
		},
		{
			name: "Multi word name prefers longest",
			body: "ping @John Smith about the draft",
			want: []int64{4},
		},
		{
			name: "Shorter name when longer does not fit",
			body: "ping @John, then @John Smith",
			want: []int64{3, 4},
		},
		{
			name: "Longer unknown name does not match a prefix user",
			body: "@Janet is new",
			want: []int64{},
		},
		{
			name: "Not at a word boundary",
			body: "mail jane@Jane.com",
			want: []int64{},
		},
		{
			name: "After newline",
			body: "first line\n@John",
			want: []int64{3},
		},
		{
			name: "Trailing punctuation",
			body: "thanks @Zoë!",
			want: []int64{5},
		},
		{
			name: "Hyphen continues a name",
			body: "@Jane-Marie",
			want: []int64{},
		},
		{
			name: "Lonely at sign",
			body: "@ @",
			want: []int64{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := mention.Resolve(tc.body, roster)
			if !slices.Equal(got, tc.want) {
				t.Errorf("Resolve(%q) = %v, want %v", tc.body, got, tc.want)
			}
		})
	}
}

func TestCompleteRoundTripsThroughResolve(t *testing.T) {
	suggestions := mention.Complete("@jo", roster, 10)
	if len(suggestions) != 2 || suggestions[0].ID != 3 || suggestions[1].ID != 4 {
		t.Fatalf("Complete(@jo) = %+v", suggestions)
	}

	for _, user := range suggestions {
		body := "hey @" + user.DisplayName + " look"
		got := mention.Resolve(body, roster)
		if !slices.Equal(got, []int64{user.ID}) {
			t.Errorf("Resolve(%q) = %v, want [%d]", body, got, user.ID)
		}
	}
}

func TestCompleteLimit(t *testing.T) {
	got := mention.Complete("", roster, 2)
	if len(got) != 2 {
		t.Errorf("Complete with limit 2 returned %d users", len(got))
	}
}
