package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fallback-chat/internal/usecase"
)

const maxBodyBytes = 20 << 20

// NewRouter exposes the handler over plain HTTP for local runs and the
// browser UI: POST /api/generate and GET /health.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(allowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	api.POST("/generate", h.generate)
	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", correlationHeader},
		ExposeHeaders: []string{correlationHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range allowedOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = allowedOrigins
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg
}

func (h *Handler) generate(c *gin.Context) {
	correlationID := c.GetHeader(correlationHeader)
	if correlationID == "" {
		correlationID = newCorrelationID()
	}
	c.Header(correlationHeader, correlationID)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "read request body", "correlation_id", correlationID, "err", err)
		c.JSON(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidRequest), Reason: "unreadable_body"})
		return
	}

	status, payload := h.process(c.Request.Context(), correlationID, body)
	c.JSON(status, payload)
}
