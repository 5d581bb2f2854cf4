package controller

import (
	"ai-animator-be/internal/dto"
	"ai-animator-be/internal/pkg/logger"
	"ai-animator-be/internal/pkg/serverutils"
	"ai-animator-be/internal/service"
	internalWS "ai-animator-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Generate(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	UpdateCode(ctx *fiber.Ctx) error
	Render(ctx *fiber.Ctx) error
	Download(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
}

type sessionController struct {
	generationService service.IGenerationService
	renderService     service.IRenderService
	hub               *internalWS.Hub
	logger            logger.ILogger
}

func NewSessionController(
	generationService service.IGenerationService,
	renderService service.IRenderService,
	hub *internalWS.Hub,
	log logger.ILogger,
) ISessionController {
	return &sessionController{
		generationService: generationService,
		renderService:     renderService,
		hub:               hub,
		logger:            log,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Post("generate", c.Generate)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Delete)
	h.Put(":id/code", c.UpdateCode)
	h.Post(":id/render", c.Render)
	h.Get(":id/download", c.Download)
	h.Get(":id/stream", c.Stream)
}

func (c *sessionController) Generate(ctx *fiber.Ctx) error {
	var req dto.GenerateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.generationService.StartGeneration(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Generation started", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	res, err := c.generationService.GetSession(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *sessionController) List(ctx *fiber.Ctx) error {
	res, err := c.generationService.ListSessions(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list sessions", res))
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	if err := c.generationService.DeleteSession(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

func (c *sessionController) UpdateCode(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	var req dto.ManualCodeUpdateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.generationService.UpdateCode(ctx.Context(), id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Code update processed", res))
}

func (c *sessionController) Render(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	var req dto.RenderRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return err
		}
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.renderService.StartRender(ctx.Context(), id, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Render started", res))
}

func (c *sessionController) Download(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	artifact, err := c.renderService.GetArtifact(ctx.Context(), id)
	if err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, artifact.ContentType)
	ctx.Set(fiber.HeaderContentDisposition, `attachment; filename="`+artifact.Filename+`"`)
	return ctx.SendFile(artifact.Path)
}

// Stream upgrades the connection and attaches it as an observer of the
// session's ordered update sequence.
func (c *sessionController) Stream(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			c.logger.Info("SessionController", "Starting stream session", map[string]interface{}{"session_id": id})
			internalWS.ServeWs(c.hub, conn, id)
			c.logger.Info("SessionController", "Stream session ended", map[string]interface{}{"session_id": id})
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}
