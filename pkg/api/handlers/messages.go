package handlers

import (
	"encoding/json"
	"net/http"

	"dialogd/pkg/dialog"
	"dialogd/pkg/logger"
	"dialogd/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterMessages registers message-by-id HTTP routes to the provided router.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/messages/{id}", getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", updateMessage).Methods(http.MethodPatch)
	r.HandleFunc("/messages/{id}", deleteMessage).Methods(http.MethodDelete)
}

type updateMessageRequest struct {
	// Pointer distinguishes "field absent" from empty: an absent text leaves
	// the message unchanged, an empty one is rejected.
	Text *string `json:"text"`
}

func messageIDVar(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := utils.ParseID(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid message id")
		return 0, false
	}
	return id, true
}

// getMessage handles GET /messages/{id}. Sender only.
func getMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuthor(w, r)
	if !ok {
		return
	}
	id, ok := messageIDVar(w, r)
	if !ok {
		return
	}
	m, err := dialog.GetMessage(user, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

// updateMessage handles PATCH /messages/{id}. Sender only; only the text is
// mutable, read-state never changes through this route.
func updateMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuthor(w, r)
	if !ok {
		return
	}
	id, ok := messageIDVar(w, r)
	if !ok {
		return
	}
	var req updateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Text != nil && maxMessageBytes > 0 && int64(len(*req.Text)) > maxMessageBytes {
		utils.JSONError(w, http.StatusRequestEntityTooLarge, "message too large")
		return
	}
	m, err := dialog.UpdateMessage(user, id, req.Text)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	logger.Info("message_updated", "message", id, "sender", user)
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

// deleteMessage handles DELETE /messages/{id}. Sender only, permanent.
func deleteMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuthor(w, r)
	if !ok {
		return
	}
	id, ok := messageIDVar(w, r)
	if !ok {
		return
	}
	if err := dialog.DeleteMessage(user, id); err != nil {
		writeDomainErr(w, err)
		return
	}
	logger.Info("message_deleted", "message", id, "sender", user)
	w.WriteHeader(http.StatusNoContent)
}
