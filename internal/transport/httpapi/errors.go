package httpapi

import (
	"errors"
	"net/http"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/core/pubsub"
	"github.com/colonyops/parley/internal/parley"
	"github.com/colonyops/parley/pkg/iojson"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrNotAMember), errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrRoomNotFound),
		errors.Is(err, chat.ErrAccountNotFound),
		errors.Is(err, chat.ErrMessageNotFound),
		errors.Is(err, parley.ErrMediaNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrAccountExists), errors.Is(err, chat.ErrRoomExists):
		return http.StatusConflict
	case errors.Is(err, chat.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pubsub.ErrRegistryClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	msg := err.Error()
	var data map[string]any

	switch status {
	case http.StatusInternalServerError:
		s.logger.Error().Ctx(r.Context()).Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = chat.ErrStoreUnavailable.Error()
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Basic realm="parley"`)
		msg = chat.ErrAuthenticationFailed.Error()
	case http.StatusBadRequest:
		msg = chat.ErrInvalidInput.Error()
		var fieldErrs criterio.FieldErrors
		if errors.As(err, &fieldErrs) {
			fields := make(map[string]any, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields[fe.Field] = fe.Err.Error()
			}
			data = map[string]any{"fields": fields}
		}
	}

	iojson.RespondError(w, status, msg, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	iojson.Respond(w, status, v)
}

// decodeBody reads a JSON request body into T. Malformed bodies are
// reported as invalid input.
func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	v, err := iojson.Decode[T](http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return v, chat.Invalid(criterio.NewFieldErrors("body", err))
	}
	return v, nil
}
