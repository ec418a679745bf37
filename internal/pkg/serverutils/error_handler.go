package serverutils

import (
	"errors"

	"telemed-recording-be/internal/pkg/apperrors"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps domain sentinels to HTTP statuses and the
// standard JSON envelope. Anything unrecognized becomes a 500.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		status := statusForError(err)
		return ctx.Status(status).JSON(ErrorResponse(status, err.Error()))
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperrors.ErrNoAudioCaptured),
		errors.Is(err, apperrors.ErrRecordingTooShort),
		errors.Is(err, apperrors.ErrInvalidArtifactType),
		errors.Is(err, apperrors.ErrNoUploadedSlot),
		errors.Is(err, apperrors.ErrSessionNotIdle),
		errors.Is(err, apperrors.ErrSummaryNotReady):
		return fiber.StatusBadRequest
	case errors.Is(err, apperrors.ErrVersionConflict):
		return fiber.StatusConflict
	case errors.Is(err, apperrors.ErrSlotUploadFailed):
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}
