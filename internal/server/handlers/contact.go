package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/namelens/edgegate/internal/core/contact"
	"github.com/namelens/edgegate/internal/core/edge"
	"github.com/namelens/edgegate/internal/metrics"
	"github.com/namelens/edgegate/internal/observability"
	"go.uber.org/zap"
)

const maxContactBody = 64 << 10

// ContactResponse is the body returned by the contact endpoint.
type ContactResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ContactHandler accepts form, multipart or JSON submissions and hands valid
// ones to sink.
func ContactHandler(sink contact.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxContactBody)

		form, err := decodeContactForm(r)
		if err != nil {
			metrics.RecordContactSubmission("invalid")
			writeContactResponse(w, http.StatusBadRequest, ContactResponse{Error: "invalid request body"})
			return
		}

		sub, err := contact.NewSubmission(form, time.Now())
		if err != nil {
			metrics.RecordContactSubmission("invalid")
			var verr *contact.ValidationError
			msg := "invalid submission"
			if errors.As(err, &verr) {
				msg = verr.Error()
			}
			writeContactResponse(w, http.StatusBadRequest, ContactResponse{Error: msg})
			return
		}
		sub.ClientKey = edge.ClientKey(r.Header)
		sub.UserAgent = r.UserAgent()

		if sink == nil {
			sink = contact.LogSink{}
		}
		if err := sink.Save(r.Context(), sub); err != nil {
			metrics.RecordContactSubmission("failed")
			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("Failed to record contact submission",
					zap.String("id", sub.ID),
					zap.Error(err))
			}
			writeContactResponse(w, http.StatusInternalServerError, ContactResponse{Error: "failed to submit form"})
			return
		}

		metrics.RecordContactSubmission("accepted")
		writeContactResponse(w, http.StatusOK, ContactResponse{Success: true, ID: sub.ID})
	}
}

func decodeContactForm(r *http.Request) (contact.Form, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var form contact.Form
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return contact.Form{}, err
		}
		return form, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxContactBody); err != nil {
			return contact.Form{}, err
		}
	default:
		if err := r.ParseForm(); err != nil {
			return contact.Form{}, err
		}
	}

	form = contact.Form{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Company: r.PostFormValue("company"),
		Phone:   r.PostFormValue("phone"),
		Service: r.PostFormValue("service"),
		Message: r.PostFormValue("message"),
	}
	return form, nil
}

func writeContactResponse(w http.ResponseWriter, status int, body ContactResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
