package utils

import (
	"crypto/subtle"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// BasicAuth wraps a handler with basic authentication. An empty password
// disables auth entirely so local development doesn't need credentials.
func BasicAuth(handler http.HandlerFunc, username, password string) http.HandlerFunc {
	if password == "" {
		return handler
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !validateUsernameAndPassword(user, pass, username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="shiftdirector"`)
			w.WriteHeader(http.StatusUnauthorized)
			log.Error("Unauthorised request")
			_, _ = w.Write([]byte("Unauthorised.\n"))
			return
		}

		handler(w, r)
	}
}

func validateUsernameAndPassword(
	requestUsername, requestPassword, desiredUsername, desiredPassword string,
) bool {
	return subtle.ConstantTimeCompare([]byte(requestUsername), []byte(desiredUsername)) == 1 &&
		subtle.ConstantTimeCompare([]byte(requestPassword), []byte(desiredPassword)) == 1
}
