package handlers

import (
	"editorchat-backend/internal/commands"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/poll"
	"net/http"
)

type messageIDRequest struct {
	MessageID int64 `json:"messageID,string" validate:"required,gt=0"`
}

// PollMessages is the only way clients learn about changes. It is a POST
// because the visible window can be long.
func PollMessages(w http.ResponseWriter, r *http.Request) {
	type PollRequest struct {
		Conversation string      `json:"conversation" validate:"required"`
		Cursor       poll.Cursor `json:"cursor"`
		Visible      models.IDs  `json:"visible"`
		Limit        int         `json:"limit" validate:"gte=0"`
	}

	var request PollRequest
	if !decodeRequest(w, r, &request) {
		return
	}

	actor := currentUser(r)
	conv, err := parseConversation(request.Conversation, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := reader.Poll(r.Context(), actor, conv, request.Cursor, request.Visible, request.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, result)
}

func GetHistory(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	conv, err := parseConversation(r.URL.Query().Get("conversation"), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	var beforeID int64
	if r.URL.Query().Get("beforeID") != "" {
		beforeID, err = queryID(r, "beforeID")
		if err != nil {
			writeError(w, err)
			return
		}
	}

	page, err := reader.History(r.Context(), actor, conv, beforeID, queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, page)
}

func GetThread(w http.ResponseWriter, r *http.Request) {
	messageID, err := queryID(r, "messageID")
	if err != nil {
		writeError(w, err)
		return
	}

	replies, err := reader.Thread(r.Context(), currentUser(r), messageID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, replies)
}

func GetPinned(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	conv, err := parseConversation(r.URL.Query().Get("conversation"), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	pinned, err := reader.Pinned(r.Context(), actor, conv)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, pinned)
}

func GetBookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := reader.Bookmarks(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, bookmarks)
}

func CreateMessage(w http.ResponseWriter, r *http.Request) {
	type CreateRequest struct {
		Conversation string `json:"conversation" validate:"required"`
		Body         string `json:"body"`
		ParentID     int64  `json:"parentID,string" validate:"gte=0"`
		Attachment   string `json:"attachment"`
	}

	var request CreateRequest
	if !decodeRequest(w, r, &request) {
		return
	}

	actor := currentUser(r)
	conv, err := parseConversation(request.Conversation, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	msg, err := processor.SendMessage(r.Context(), actor, commands.SendMessage{
		Conversation: conv,
		Body:         request.Body,
		ParentID:     request.ParentID,
		Attachment:   request.Attachment,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, msg)
}

func EditMessage(w http.ResponseWriter, r *http.Request) {
	type EditRequest struct {
		messageIDRequest
		Body string `json:"body"`
	}

	var request EditRequest
	if !decodeRequest(w, r, &request) {
		return
	}

	msg, err := processor.EditMessage(r.Context(), currentUser(r), request.MessageID, request.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, msg)
}

func DeleteMessage(w http.ResponseWriter, r *http.Request) {
	var request messageIDRequest
	if !decodeRequest(w, r, &request) {
		return
	}

	deleted, err := processor.DeleteMessage(r.Context(), currentUser(r), request.MessageID)
	if err != nil {
		writeError(w, err)
		return
	}

	type DeleteResponse struct {
		DeletedIDs models.IDs `json:"deletedIDs"`
	}
	writeJSON(w, DeleteResponse{DeletedIDs: deleted})
}

func ToggleReaction(w http.ResponseWriter, r *http.Request) {
	type ReactRequest struct {
		messageIDRequest
		Emoji string `json:"emoji" validate:"required"`
	}

	var request ReactRequest
	if !decodeRequest(w, r, &request) {
		return
	}

	added, msg, err := processor.ToggleReaction(r.Context(), currentUser(r), request.MessageID, request.Emoji)
	if err != nil {
		writeError(w, err)
		return
	}

	type ReactResponse struct {
		Added   bool           `json:"added"`
		Message models.Message `json:"message"`
	}
	writeJSON(w, ReactResponse{Added: added, Message: msg})
}

func TogglePin(w http.ResponseWriter, r *http.Request) {
	var request messageIDRequest
	if !decodeRequest(w, r, &request) {
		return
	}

	msg, err := processor.TogglePin(r.Context(), currentUser(r), request.MessageID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, msg)
}

func ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	var request messageIDRequest
	if !decodeRequest(w, r, &request) {
		return
	}

	bookmarked, err := processor.ToggleBookmark(r.Context(), currentUser(r), request.MessageID)
	if err != nil {
		writeError(w, err)
		return
	}

	type BookmarkResponse struct {
		Bookmarked bool `json:"bookmarked"`
	}
	writeJSON(w, BookmarkResponse{Bookmarked: bookmarked})
}
