package handlers

import (
	"editorchat-backend/internal/mention"
	"net/http"
	"strings"
)

// GetMemberList returns everyone with their presence. Editors can message
// anyone, so there is no per-channel member list.
func GetMemberList(w http.ResponseWriter, r *http.Request) {
	roster, err := users.Roster(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, roster)
}

func CompleteMention(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimPrefix(r.URL.Query().Get("q"), "@")

	limit := queryInt(r, "limit")
	if limit == 0 || limit > 20 {
		limit = 8
	}

	roster, err := users.Users(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	matches := mention.Complete(query, roster, limit)

	type Suggestion struct {
		ID          int64  `json:"id,string"`
		DisplayName string `json:"displayName"`
	}
	suggestions := make([]Suggestion, 0, len(matches))
	for _, user := range matches {
		suggestions = append(suggestions, Suggestion{ID: user.ID, DisplayName: user.DisplayName})
	}

	writeJSON(w, suggestions)
}
