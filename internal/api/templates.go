package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type templateRequest struct {
	FormulaID    int64  `json:"formula_id" binding:"required"`
	TemplateName string `json:"template_name" binding:"required"`
}

func (h *Handler) ListTemplates(c *gin.Context) {
	list, err := h.templates.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.templates.Create(c.Request.Context(), req.FormulaID, req.TemplateName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}
