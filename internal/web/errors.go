package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ginjaninja78/card-export-formatter/internal/converter"
	"github.com/ginjaninja78/card-export-formatter/internal/csvparser"
	"github.com/ginjaninja78/card-export-formatter/internal/logging"
	"github.com/ginjaninja78/card-export-formatter/internal/validation"
)

// ErrorResponse is the JSON body of a failed API request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps an error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBodyTooBig):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "no_file"
	case errors.Is(err, errBadFormat):
		return http.StatusBadRequest, "bad_format"
	}

	kind := converter.ErrorKind(err)
	switch kind {
	case converter.KindParse:
		return http.StatusBadRequest, kind
	case converter.KindMissingColumn, converter.KindEmptyResult:
		return http.StatusUnprocessableEntity, kind
	case converter.KindCanceled:
		return http.StatusServiceUnavailable, kind
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondError writes err as JSON for API clients and as the upload form with
// an error banner for browsers. Server-side failures are logged and their
// details are not sent to the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	msg := clientMessage(err)
	if status >= http.StatusInternalServerError {
		log := logging.FromContext(r.Context())
		log.Error().Err(err).Str("code", code).Msg("request failed")
		msg = "the file could not be processed; try again later"
	}

	if wantsJSON(r) {
		writeJSON(w, status, ErrorResponse{
			Error:     msg,
			Code:      code,
			RequestID: chimw.GetReqID(r.Context()),
		})
		return
	}

	s.renderIndex(w, status, msg)
}

// clientMessage drops the staged file path from input errors; clients only
// know the name they uploaded.
func clientMessage(err error) string {
	var (
		parseErr   *csvparser.ParseError
		missingErr *validation.MissingColumnError
	)
	switch {
	case errors.As(err, &parseErr):
		e := *parseErr
		e.Source = ""
		return e.Error()
	case errors.As(err, &missingErr):
		e := *missingErr
		e.Source = ""
		return e.Error()
	default:
		return err.Error()
	}
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
