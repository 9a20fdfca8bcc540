package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/menuguard/internal/handlers"
	"github.com/charlesng35/menuguard/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, checker *monitoring.Checker) {
	health := handlers.Health(checker)
	r.GET("/health", health)
	r.GET("/api/health", health)
}
