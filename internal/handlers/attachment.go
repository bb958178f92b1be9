package handlers

import (
	"net/http"
)

// UploadAttachment stores the file and returns the reference to send with
// a message.
func UploadAttachment(w http.ResponseWriter, r *http.Request) {
	ref, err := files.SaveUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sugar.Debugf("User ID %d uploaded %s", currentUser(r).ID, ref)

	type UploadResponse struct {
		Attachment string `json:"attachment"`
	}
	writeJSON(w, UploadResponse{Attachment: ref})
}
