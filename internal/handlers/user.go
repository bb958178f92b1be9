package handlers

import (
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/presence"
	"net/http"
	"strconv"
	"time"
)

// GetUserInfo returns the caller's own account for userID=self, and a
// roster entry with presence for anyone else.
func GetUserInfo(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)

	paramUserID := r.URL.Query().Get("userID")
	if paramUserID == "" || paramUserID == "self" {
		writeJSON(w, actor)
		return
	}

	requestedUserID, err := strconv.ParseInt(paramUserID, 10, 64)
	if err != nil {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	user, err := users.User(r.Context(), requestedUserID)
	if err != nil {
		writeError(w, err)
		return
	}

	user.LastSeenAt, err = users.LastSeen(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}

	members := presence.Members([]models.User{user}, time.Now())
	writeJSON(w, members[0])
}
