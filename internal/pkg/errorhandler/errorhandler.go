package errorhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/photoshare/photoshare-web/internal/pkg/apperror"
	"github.com/photoshare/photoshare-web/internal/pkg/logger"
	"github.com/photoshare/photoshare-web/internal/pkg/response"
)

var messages = map[apperror.Kind]string{
	apperror.KindNotFound:     "The requested resource was not found",
	apperror.KindInvalidInput: "The request is malformed",
	apperror.KindUnauthorized: "You must be signed in",
	apperror.KindUpstream:     "A backing service failed, please retry",
	apperror.KindInternal:     "An unexpected error occurred",
}

// Handle logs err and writes the JSON error envelope with the status of its kind
func Handle(ctx context.Context, w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	status := kind.HTTPStatus()

	event := eventFor(logger.FromContext(ctx), status).
		Str("error_code", string(kind)).
		Int("status_code", status).
		Err(err)
	event.Msg("Request error")

	response.Error(w, status, string(kind), message(kind, err))
}

// HandleValidation writes a 400 carrying per-field validation messages
func HandleValidation(ctx context.Context, w http.ResponseWriter, fields map[string]string) {
	logger.FromContext(ctx).Warn().
		Interface("validation_errors", fields).
		Msg("Validation error")

	response.ErrorWithDetails(w, http.StatusBadRequest, string(apperror.KindInvalidInput), "Validation failed", fields)
}

// LogExternalServiceError logs errors from blob store, queue and image calls
func LogExternalServiceError(ctx context.Context, service, operation string, err error) {
	logger.FromContext(ctx).Error().
		Str("external_service", service).
		Str("operation", operation).
		Err(err).
		Msg("External service error")
}

func eventFor(l *zerolog.Logger, status int) *zerolog.Event {
	if l == nil {
		l = &log.Logger
	}
	if status >= http.StatusInternalServerError {
		return l.Error()
	}
	return l.Warn()
}

// Client errors expose the innermost message; server errors stay generic.
func message(kind apperror.Kind, err error) string {
	if kind.HTTPStatus() >= http.StatusInternalServerError {
		return messages[kind]
	}
	var e *apperror.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return messages[kind]
}
