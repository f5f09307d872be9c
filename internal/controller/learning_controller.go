package controller

import (
	"errors"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/serverutils"
	"research-assistant-be/internal/service"
	"research-assistant-be/pkg/learning"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ILearningController interface {
	RegisterRoutes(r fiber.Router)
	CreateDocument(ctx *fiber.Ctx) error
	ShowDocument(ctx *fiber.Ctx) error
	StartSession(ctx *fiber.Ctx) error
	PauseSession(ctx *fiber.Ctx) error
	ResumeSession(ctx *fiber.Ctx) error
	StopSession(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	ListInsights(ctx *fiber.Ctx) error
	SearchInsights(ctx *fiber.Ctx) error
	ListRuns(ctx *fiber.Ctx) error
}

type learningController struct {
	learningService service.ILearningService
}

func NewLearningController(learningService service.ILearningService) ILearningController {
	return &learningController{
		learningService: learningService,
	}
}

func (c *learningController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/learning/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("documents", c.CreateDocument)
	h.Get("documents/:id", c.ShowDocument)
	h.Get("documents/:id/insights", c.ListInsights)
	h.Get("documents/:id/insights/search", c.SearchInsights)
	h.Get("documents/:id/runs", c.ListRuns)
	h.Post("session", c.StartSession)
	h.Get("session", c.GetSession)
	h.Post("session/pause", c.PauseSession)
	h.Post("session/resume", c.ResumeSession)
	h.Post("session/stop", c.StopSession)
}

func mapLearningError(err error) error {
	switch {
	case errors.Is(err, learning.ErrSessionActive):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, learning.ErrInvalidTransition),
		errors.Is(err, learning.ErrNoSession):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (c *learningController) CreateDocument(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.CreateDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.learningService.CreateDocument(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create document", res))
}

func (c *learningController) ShowDocument(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	res, err := c.learningService.ShowDocument(ctx.Context(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show document", res))
}

func (c *learningController) StartSession(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.StartLearningRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.learningService.StartSession(ctx.Context(), userId, &req)
	if err != nil {
		return mapLearningError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Learning session started", res))
}

func (c *learningController) PauseSession(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	if err := c.learningService.PauseSession(ctx.Context(), userId); err != nil {
		return mapLearningError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Learning session paused", nil))
}

func (c *learningController) ResumeSession(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	if err := c.learningService.ResumeSession(ctx.Context(), userId); err != nil {
		return mapLearningError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Learning session resumed", nil))
}

func (c *learningController) StopSession(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	if err := c.learningService.StopSession(ctx.Context(), userId); err != nil {
		return mapLearningError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Learning session stopped", nil))
}

func (c *learningController) GetSession(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	res, err := c.learningService.GetSession(ctx.Context(), userId)
	if err != nil {
		return mapLearningError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show learning session", res))
}

func (c *learningController) ListInsights(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	res, err := c.learningService.ListInsights(ctx.Context(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list insights", res))
}

func (c *learningController) SearchInsights(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	query := ctx.Query("q")
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing search query")
	}
	limit := ctx.QueryInt("limit", 10)

	res, err := c.learningService.SearchInsights(ctx.Context(), userId, id, query, limit)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success search insights", res))
}

func (c *learningController) ListRuns(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}

	res, err := c.learningService.ListRuns(ctx.Context(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list learning runs", res))
}
