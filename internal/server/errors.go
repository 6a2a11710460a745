package server

import (
	"net/http"

	apperrors "github.com/namelens/edgegate/internal/errors"
)

// HandleError writes err as the JSON error envelope.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// notFound answers paths that passed the edge router but match no route or
// page.
func notFound(w http.ResponseWriter, r *http.Request) {
	HandleError(w, r, apperrors.NewNotFoundError("The requested resource was not found"))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	HandleError(w, r, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
}
