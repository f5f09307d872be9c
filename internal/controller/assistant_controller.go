package controller

import (
	"errors"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/serverutils"
	"research-assistant-be/internal/service"
	"research-assistant-be/pkg/assistant"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAssistantController interface {
	RegisterRoutes(r fiber.Router)
	ListThreads(ctx *fiber.Ctx) error
	CreateThread(ctx *fiber.Ctx) error
	CloseThread(ctx *fiber.Ctx) error
	SetActiveThread(ctx *fiber.Ctx) error
	SetThreadProvider(ctx *fiber.Ctx) error
	SetThreadLocal(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	SendQuery(ctx *fiber.Ctx) error
	Abort(ctx *fiber.Ctx) error
	ExportConversation(ctx *fiber.Ctx) error
	ImportConversation(ctx *fiber.Ctx) error
}

type assistantController struct {
	assistantService service.IAssistantService
}

func NewAssistantController(assistantService service.IAssistantService) IAssistantController {
	return &assistantController{
		assistantService: assistantService,
	}
}

func (c *assistantController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/assistant/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("threads", c.ListThreads)
	h.Post("threads", c.CreateThread)
	h.Delete("threads/:id", c.CloseThread)
	h.Put("threads/active", c.SetActiveThread)
	h.Put("threads/provider", c.SetThreadProvider)
	h.Put("threads/local", c.SetThreadLocal)
	h.Get("threads/:id/history", c.History)
	h.Post("query", c.SendQuery)
	h.Post("abort", c.Abort)
	h.Post("threads/:id/export", c.ExportConversation)
	h.Post("threads/import", c.ImportConversation)
}

func mapAssistantError(err error) error {
	switch {
	case errors.Is(err, assistant.ErrThreadNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, assistant.ErrThreadLimit),
		errors.Is(err, assistant.ErrReservedThread):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, assistant.ErrEmptyQuery):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (c *assistantController) ListThreads(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	res, err := c.assistantService.ListThreads(ctx.Context(), userId)
	if err != nil {
		return mapAssistantError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list threads", res))
}

func (c *assistantController) CreateThread(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.CreateThreadRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	res, err := c.assistantService.CreateThread(ctx.Context(), userId, &req)
	if err != nil {
		return mapAssistantError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create thread", res))
}

func (c *assistantController) CloseThread(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	err := c.assistantService.CloseThread(ctx.Context(), userId, ctx.Params("id"))
	if err != nil {
		return mapAssistantError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success close thread", nil))
}

func (c *assistantController) SetActiveThread(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.SetActiveThreadRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.assistantService.SetActiveThread(ctx.Context(), userId, &req); err != nil {
		return mapAssistantError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success set active thread", nil))
}

func (c *assistantController) SetThreadProvider(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.SetThreadProviderRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.assistantService.SetThreadProvider(ctx.Context(), userId, &req); err != nil {
		return mapAssistantError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success set thread provider", nil))
}

func (c *assistantController) SetThreadLocal(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.SetThreadLocalRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.assistantService.SetThreadLocal(ctx.Context(), userId, &req); err != nil {
		return mapAssistantError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success set thread local mode", nil))
}

func (c *assistantController) History(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	res, err := c.assistantService.History(ctx.Context(), userId, ctx.Params("id"))
	if err != nil {
		return mapAssistantError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show thread history", res))
}

func (c *assistantController) SendQuery(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.SendQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.assistantService.SendQuery(ctx.Context(), userId, &req)
	if err != nil {
		return mapAssistantError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Query accepted, tokens stream over the websocket", res))
}

func (c *assistantController) Abort(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.AbortRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := c.assistantService.Abort(ctx.Context(), userId, &req); err != nil {
		return mapAssistantError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success abort stream", nil))
}

func (c *assistantController) ExportConversation(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	res, err := c.assistantService.ExportConversation(ctx.Context(), userId, ctx.Params("id"))
	if err != nil {
		return mapAssistantError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success export conversation", res))
}

func (c *assistantController) ImportConversation(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.ImportConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.assistantService.ImportConversation(ctx.Context(), userId, &req); err != nil {
		return mapAssistantError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success import conversation", nil))
}
