package handlers

import (
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/models"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func errorCode(err error) string {
	for _, sentinel := range []error{chaterr.ErrValidation, chaterr.ErrPermission, chaterr.ErrNotFound, chaterr.ErrEditWindowExpired, chaterr.ErrConflict} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal"
}

// writeError answers with the status that matches err. Only unexpected
// errors are logged, everything else is the caller's fault.
func writeError(w http.ResponseWriter, err error) {
	status, expected := chaterr.Status(err)
	if !expected {
		sugar.Error(err)
		http.Error(w, "", status)
		return
	}

	sugar.Debug(err)
	writeJSONStatus(w, status, errorResponse{Error: errorCode(err), Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		sugar.Error(err)
	}
}

// decodeRequest reads a JSON body into dst and runs its validate tags.
// On failure it has already answered and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sugar.Debug(err)
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: chaterr.ErrValidation.Error(), Detail: "malformed request body"})
		return false
	}

	err := validate.Struct(dst)
	if err == nil {
		return true
	}

	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return false
	}

	fields := make(map[string]string, len(validateErrs))
	for _, e := range validateErrs {
		fields[e.Field()] = e.Tag()
	}
	writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: chaterr.ErrValidation.Error(), Fields: fields})
	return false
}

func queryID(r *http.Request, name string) (int64, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, chaterr.Validation("missing %s", name)
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, chaterr.Validation("invalid %s", name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseConversation(s string, actor models.User) (models.ConversationRef, error) {
	conv, err := models.ParseConversation(s, actor.ID)
	if err != nil {
		return conv, chaterr.Validation("%s", err.Error())
	}
	return conv, nil
}
