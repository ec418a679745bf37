package controller

import (
	"telemed-recording-be/internal/dto"
	"telemed-recording-be/internal/entity"
	"telemed-recording-be/internal/pkg/apperrors"
	"telemed-recording-be/internal/pkg/serverutils"
	"telemed-recording-be/internal/service"
	"telemed-recording-be/pkg/storage"

	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IRecordingController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Upload(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	ForceProcess(ctx *fiber.Ctx) error
	End(ctx *fiber.Ctx) error
	RegenerateSummary(ctx *fiber.Ctx) error
	Summary(ctx *fiber.Ctx) error
	MergedFile(ctx *fiber.Ctx) error
}

type recordingController struct {
	recordingService service.IRecordingService
	store            *storage.LocalStore
	maxUploadBytes   int64
}

func NewRecordingController(
	recordingService service.IRecordingService,
	store *storage.LocalStore,
	maxUploadBytes int64,
) IRecordingController {
	return &recordingController{
		recordingService: recordingService,
		store:            store,
		maxUploadBytes:   maxUploadBytes,
	}
}

func (c *recordingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/recording/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("start", c.Start)
	h.Post(":id/upload/:role", c.Upload)
	h.Get(":id/status", c.Status)
	h.Post(":id/force-process", c.ForceProcess)
	h.Post(":id/end", c.End)
	h.Post(":id/regenerate-summary", c.RegenerateSummary)
	h.Get(":id/summary", c.Summary)
	h.Get(":id/merged-file", c.MergedFile)
}

func (c *recordingController) Start(ctx *fiber.Ctx) error {
	var req dto.StartSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.recordingService.StartSession(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success start recording session", res))
}

func (c *recordingController) Upload(ctx *fiber.Ctx) error {
	sessionId, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	role, err := parseRole(ctx.Params("role"))
	if err != nil {
		return err
	}

	fileHeader, err := ctx.FormFile("audio")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing audio file")
	}
	if fileHeader.Size > c.maxUploadBytes {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "audio file exceeds upload limit")
	}

	duration, _ := strconv.ParseFloat(ctx.FormValue("duration"), 64)

	src, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	path, written, err := c.store.SaveUpload(sessionId.String(), string(role), fileHeader.Filename, src)
	if err != nil {
		// The slot is marked FAILED but stays retryable.
		_ = c.recordingService.MarkSlotFailed(ctx.Context(), sessionId, role)
		return fmt.Errorf("%w: %v", apperrors.ErrSlotUploadFailed, err)
	}

	req := &dto.UploadRecordingRequest{
		SessionId:       sessionId,
		Role:            role,
		FileName:        fileHeader.Filename,
		MimeType:        fileHeader.Header.Get("Content-Type"),
		ByteSize:        written,
		DurationSeconds: duration,
		FilePath:        path,
	}

	res, err := c.recordingService.Upload(ctx.Context(), req)
	if err != nil {
		// Rejected artifacts are removed so failed uploads leave no orphans.
		c.store.Remove(path)
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success upload recording", res))
}

func (c *recordingController) Status(ctx *fiber.Ctx) error {
	sessionId, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.recordingService.GetStatus(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get recording status", res))
}

func (c *recordingController) ForceProcess(ctx *fiber.Ctx) error {
	sessionId, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.recordingService.ForceProcess(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success force process recording", res))
}

func (c *recordingController) End(ctx *fiber.Ctx) error {
	sessionId, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.recordingService.EndSession(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success end recording session", res))
}

func (c *recordingController) RegenerateSummary(ctx *fiber.Ctx) error {
	sessionId, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.recordingService.RegenerateSummary(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success request summary regeneration", res))
}

func (c *recordingController) Summary(ctx *fiber.Ctx) error {
	sessionId, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.recordingService.GetSummary(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get consultation summary", res))
}

func (c *recordingController) MergedFile(ctx *fiber.Ctx) error {
	sessionId, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	path, mimeType, err := c.recordingService.MergedFile(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, mimeType)
	return ctx.SendFile(path)
}

func parseSessionId(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, apperrors.ErrSessionNotFound
	}
	return id, nil
}

func parseRole(raw string) (entity.Role, error) {
	switch entity.Role(raw) {
	case entity.RolePatient:
		return entity.RolePatient, nil
	case entity.RoleDoctor:
		return entity.RoleDoctor, nil
	}
	return "", fiber.NewError(fiber.StatusBadRequest, "role must be patient or doctor")
}
