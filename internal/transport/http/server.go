package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pantrycam/internal/bootstrap"
	"pantrycam/internal/transport/http/handler"
	"pantrycam/internal/transport/http/middleware"
	"pantrycam/web"
)

func NewRouter(app *bootstrap.App) (*gin.Engine, error) {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger.Named("http")), gin.Recovery())

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates failed: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	healthHandler := handler.NewHealthHandler(app)
	recipeHandler := handler.NewRecipeHandler(app.Recipes, app.Logger.Named("recipes"))
	historyHandler := handler.NewHistoryHandler(app.History, app.Logger.Named("history"))

	router.GET("/healthz", healthHandler.Check)

	pages := router.Group("/")
	pages.Use(middleware.Sessions(app.Sessions))
	pages.GET("/", recipeHandler.Index)
	pages.POST("/upload", middleware.BodyLimit(app.Config.Upload.MaxBytes), recipeHandler.Upload)
	pages.GET("/results", recipeHandler.Results)

	v1 := router.Group("/api/v1")
	v1.GET("/analyses", historyHandler.List)

	app.Logger.Debug("routes registered", zap.Int("count", len(router.Routes())))
	return router, nil
}
