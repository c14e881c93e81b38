// Package common holds small helpers shared across HTTP handlers.
package common

import (
	"errors"
	"net/http"
	"strings"
)

// UserIDHeader carries the authenticated user's id, injected by the
// surrounding application's auth layer. This service trusts it as-is.
const UserIDHeader = "X-User-ID"

// ErrNoUser is returned when a request carries no user identity.
var ErrNoUser = errors.New("missing " + UserIDHeader + " header")

// UserIDFromRequest extracts the authenticated user id from the request.
func UserIDFromRequest(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if id == "" {
		return "", ErrNoUser
	}
	return id, nil
}
