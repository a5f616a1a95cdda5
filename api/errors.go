package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/studydeck/apiclient"
	"github.com/jmcleod/studydeck/auth"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// mapError writes the JSON error for a failed backend call.
func mapError(w http.ResponseWriter, err error) {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "session expired")
	case errors.Is(err, apiclient.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		msg := apiErr.Detail
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		writeError(w, apiErr.StatusCode, msg)
	default:
		writeError(w, http.StatusBadGateway, "backend unavailable")
	}
}

// loginErrorMessage maps a login failure to a status and a user-facing
// message. Provider error details are not passed through.
func loginErrorMessage(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrConfigurationMissing):
		return http.StatusServiceUnavailable, "Login ist nicht konfiguriert. Prüfe Domain, Client-ID und Callback-URL."
	case errors.Is(err, auth.ErrMissingLoginState):
		return http.StatusBadRequest, "Die Login-Sitzung ist abgelaufen oder wurde bereits verwendet. Bitte erneut anmelden."
	case errors.Is(err, auth.ErrStateMismatch):
		return http.StatusBadRequest, "Die Login-Anfrage konnte nicht verifiziert werden."
	case errors.Is(err, auth.ErrTokenExchangeFailed):
		return http.StatusBadGateway, "Login konnte nicht abgeschlossen werden."
	default:
		return http.StatusInternalServerError, "Login konnte nicht abgeschlossen werden."
	}
}
