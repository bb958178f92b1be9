package handlers

import (
	"net/http"
)

func GetConversationList(w http.ResponseWriter, r *http.Request) {
	summaries, err := reader.Conversations(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, summaries)
}

func OpenDirect(w http.ResponseWriter, r *http.Request) {
	type OpenRequest struct {
		PeerID int64 `json:"peerID,string" validate:"required,gt=0"`
	}

	var request OpenRequest
	if !decodeRequest(w, r, &request) {
		return
	}

	conv, err := processor.OpenDirect(r.Context(), currentUser(r), request.PeerID)
	if err != nil {
		writeError(w, err)
		return
	}

	type OpenResponse struct {
		Conversation string `json:"conversation"`
	}
	writeJSON(w, OpenResponse{Conversation: conv.Key()})
}

func MarkRead(w http.ResponseWriter, r *http.Request) {
	type ReadRequest struct {
		Conversation string `json:"conversation" validate:"required"`
		UpToID       int64  `json:"upToID,string" validate:"required,gt=0"`
	}

	var request ReadRequest
	if !decodeRequest(w, r, &request) {
		return
	}

	actor := currentUser(r)
	conv, err := parseConversation(request.Conversation, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := processor.MarkRead(r.Context(), actor, conv, request.UpToID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
