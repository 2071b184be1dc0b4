package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"dialogd/pkg/dialog"
	"dialogd/pkg/logger"
	"dialogd/pkg/models"
	"dialogd/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterThreads registers all thread-related HTTP routes to the provided router.
func RegisterThreads(r *mux.Router) {
	// Collection routes
	r.HandleFunc("/threads", createThread).Methods(http.MethodPost)
	r.HandleFunc("/threads", listThreads).Methods(http.MethodGet)

	// Single resource routes
	r.HandleFunc("/threads/{id}", getThread).Methods(http.MethodGet)
	r.HandleFunc("/threads/{id}", deleteThread).Methods(http.MethodDelete)

	// Thread-scoped messages
	r.HandleFunc("/threads/{id}/messages", createThreadMessage).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/messages", listThreadMessages).Methods(http.MethodGet)

	// Bulk read-state transition scoped to a thread
	r.HandleFunc("/threads/{id}/messages/read_until", readUntil).Methods(http.MethodPost)
}

type createThreadRequest struct {
	Participants []string `json:"participants" validate:"required,min=1"`
}

type createMessageRequest struct {
	Text string `json:"text"`
}

type readUntilRequest struct {
	MessageID int64 `json:"message_id"`
}

// threadIDVar parses the {id} path variable. Writes a 400 and returns false
// when the id is not a positive integer.
func threadIDVar(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := utils.ParseID(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid thread id")
		return 0, false
	}
	return id, true
}

// createThread handles POST /threads. The participant pair is unique: when a
// thread for the pair already exists it is returned instead of duplicated.
func createThread(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuthor(w, r)
	if !ok {
		return
	}
	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "participants required")
		return
	}
	t, err := dialog.CreateThread(user, req.Participants)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	logger.Info("thread_opened", "thread", t.ID, "user", user)
	_ = utils.JSONWrite(w, http.StatusCreated, t)
}

// listThreads handles GET /threads: every thread the caller participates in,
// newest first, each enriched with its unread count and last message preview.
func listThreads(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuthor(w, r)
	if !ok {
		return
	}
	out, err := dialog.ListThreads(user)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Threads []models.Thread `json:"threads"`
	}{Threads: out})
}

// getThread handles GET /threads/{id}. Participants only.
func getThread(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuthor(w, r)
	if !ok {
		return
	}
	id, ok := threadIDVar(w, r)
	if !ok {
		return
	}
	t, err := dialog.GetThread(user, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, t)
}

// deleteThread handles DELETE /threads/{id}. Leaving is asymmetric: the
// caller is removed from the participant set, and the thread itself is
// destroyed (messages included) only once no counterpart remains.
func deleteThread(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuthor(w, r)
	if !ok {
		return
	}
	id, ok := threadIDVar(w, r)
	if !ok {
		return
	}
	if err := dialog.DeleteThread(user, id); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// createThreadMessage handles POST /threads/{id}/messages.
func createThreadMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuthor(w, r)
	if !ok {
		return
	}
	id, ok := threadIDVar(w, r)
	if !ok {
		return
	}
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if maxMessageBytes > 0 && int64(len(req.Text)) > maxMessageBytes {
		utils.JSONError(w, http.StatusRequestEntityTooLarge, "message too large")
		return
	}
	m, err := dialog.CreateMessage(user, id, req.Text)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	logger.Info("message_created", "thread", id, "message", m.ID, "sender", user)
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

// listThreadMessages handles GET /threads/{id}/messages, newest first.
// Optional query parameter "limit" restricts to the most recent N messages.
func listThreadMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuthor(w, r)
	if !ok {
		return
	}
	id, ok := threadIDVar(w, r)
	if !ok {
		return
	}
	limit := 0
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim > 0 {
			limit = lim
		}
	}
	msgs, err := dialog.ListMessages(user, id, limit)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Thread   uint64           `json:"thread"`
		Messages []models.Message `json:"messages"`
	}{Thread: id, Messages: msgs})
}

// readUntil handles POST /threads/{id}/messages/read_until: marks the
// interlocutor's messages with id <= message_id as read.
func readUntil(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuthor(w, r)
	if !ok {
		return
	}
	id, ok := threadIDVar(w, r)
	if !ok {
		return
	}
	var req readUntilRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	n, err := dialog.ReadUntil(user, id, req.MessageID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	logger.Info("messages_read_until", "thread", id, "user", user, "watermark", req.MessageID, "marked", n)
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Marked int `json:"marked"`
	}{Marked: n})
}
