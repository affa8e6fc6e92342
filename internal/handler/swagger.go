package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"

	_ "github.com/notehub/gatekeeper/docs"
)

// SwaggerHandler serves the generated OpenAPI document and its UI under /docs.
type SwaggerHandler struct {
	ui fiber.Handler
}

func NewSwaggerHandler() *SwaggerHandler {
	return &SwaggerHandler{
		ui: swagger.New(swagger.Config{
			Title:        "Gatekeeper API",
			DeepLinking:  true,
			DocExpansion: "list",
		}),
	}
}

func (h *SwaggerHandler) Register(app *fiber.App) {
	app.Get("/docs/*", h.ui)
}
