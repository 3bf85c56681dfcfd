package topics

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/topics", h.list)
}

func (h *Handler) list(c *gin.Context) {
	force := c.Query("refresh") == "true"
	themes := h.Service.Topics(force)

	items := make([]gin.H, 0, len(themes))
	for i, theme := range themes {
		items = append(items, gin.H{
			"id":    i + 1,
			"title": fmt.Sprintf("Tema %d: %s", i+1, theme),
			"theme": theme,
		})
	}
	c.JSON(http.StatusOK, gin.H{"topics": items})
}
