package server

import (
	"errors"
	"net/http"

	"despachante/internal/util"
	"despachante/pkg/auth"
	"despachante/services/api/internal/app"
)

const msgInternal = "erro interno do servidor"

var statusByError = []struct {
	err    error
	status int
}{
	{app.ErrWrongPassword, http.StatusUnauthorized},
	{app.ErrInvalidToken, http.StatusForbidden},
	{app.ErrUserNotFound, http.StatusNotFound},
	{app.ErrEmailNotFound, http.StatusNotFound},
	{app.ErrVehicleNotFound, http.StatusNotFound},
	{app.ErrVehicleExists, http.StatusConflict},
	{app.ErrNoFilesStored, http.StatusInternalServerError},
	{app.ErrPinDelivery, http.StatusBadGateway},

	{app.ErrSignupFieldsRequired, http.StatusBadRequest},
	{app.ErrLoginFieldsRequired, http.StatusBadRequest},
	{app.ErrInvalidEmail, http.StatusBadRequest},
	{app.ErrEmailRequired, http.StatusBadRequest},
	{app.ErrEmailAlreadyExists, http.StatusBadRequest},
	{app.ErrNameRequired, http.StatusBadRequest},
	{app.ErrVehicleFieldsRequired, http.StatusBadRequest},
	{app.ErrInvalidPlate, http.StatusBadRequest},
	{app.ErrMissingFields, http.StatusBadRequest},
	{app.ErrNoFiles, http.StatusBadRequest},
	{app.ErrNotPDF, http.StatusBadRequest},
	{app.ErrUnknownService, http.StatusBadRequest},
	{app.ErrInvalidPaymentMethod, http.StatusBadRequest},
	{app.ErrPinFieldsEmpty, http.StatusBadRequest},
	{app.ErrPinInvalid, http.StatusBadRequest},
	{app.ErrPinExpired, http.StatusBadRequest},
	{app.ErrPinRequired, http.StatusBadRequest},
	{auth.ErrPasswordTooShort, http.StatusBadRequest},
	{auth.ErrPasswordTooLong, http.StatusBadRequest},
	{auth.ErrPasswordWeak, http.StatusBadRequest},
}

// statusFor maps app errors to a status and a client-safe message.
// Unknown errors become 500 without leaking details.
func statusFor(err error) (int, string) {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return e.status, err.Error()
		}
	}
	return http.StatusInternalServerError, msgInternal
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeError(w, status, msg)
}

type recoveryResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeRecoveryError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("recovery request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, recoveryResponse{Success: false, Message: msg})
}
