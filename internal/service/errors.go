package service

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/tontine/internal/apperrors"
	"github.com/mmynk/tontine/internal/storage"
)

// translate maps a storage error to the application taxonomy.
// subject names the entity for not-found and conflict messages.
// Errors that already carry a kind pass through.
func translate(err error, subject string, args ...any) error {
	var appErr *apperrors.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NotFound("%s not found", fmt.Sprintf(subject, args...))
	case errors.Is(err, storage.ErrConflict):
		return apperrors.Conflict("%s", fmt.Sprintf(subject, args...))
	default:
		return apperrors.Internal(err, "failed to access "+fmt.Sprintf(subject, args...))
	}
}

// fail records err on span and returns it.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, apperrors.PublicMessage(err))
	return err
}
