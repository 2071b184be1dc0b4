package handlers

import (
	"net/http"

	"dialogd/pkg/auth"
	"dialogd/pkg/dmerr"
	"dialogd/pkg/logger"
	"dialogd/pkg/utils"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// maxMessageBytes bounds message text size; zero means unlimited. Set once
// at startup from limits.max_message_bytes.
var maxMessageBytes int64

// SetMaxMessageBytes installs the message size limit.
func SetMaxMessageBytes(n int64) { maxMessageBytes = n }

// writeDomainErr maps domain errors onto HTTP status codes. Unknown errors
// are logged and reported as 500 without leaking internals.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case dmerr.IsValidation(err):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case dmerr.IsForbidden(err):
		utils.JSONError(w, http.StatusForbidden, err.Error())
	case dmerr.IsNotFound(err):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error("handler_internal_error", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func authorID(r *http.Request) string {
	return auth.AuthorIDFromContext(r.Context())
}

// requireAuthor extracts the verified author id set by the signature
// middleware. Writes a 401 and returns false when no author is present.
func requireAuthor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := authorID(r)
	if id == "" {
		utils.JSONError(w, http.StatusUnauthorized, "author signature required")
		return "", false
	}
	return id, true
}
