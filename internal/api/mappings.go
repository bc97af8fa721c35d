package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/metrics"
)

// mappingRequest binds variable_id, within the context tag's formula, to the
// subgroup tag that supplies its value.
type mappingRequest struct {
	VariableID    int64 `json:"variable_id" binding:"required"`
	SubgroupTagID int64 `json:"subgroup_tag_id" binding:"required"`
	ContextTagID  int64 `json:"context_tag_id" binding:"required"`
}

func (h *Handler) ListMappings(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rows, err := h.mappings.ListByContext(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// UpsertMapping creates the mapping or replaces the target of the existing
// one for the same (context tag, variable).
func (h *Handler) UpsertMapping(c *gin.Context) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	row, err := h.mappings.Upsert(c.Request.Context(), req.ContextTagID, req.VariableID, req.SubgroupTagID)
	if err != nil {
		fail(c, err)
		return
	}
	metrics.MappingsBound.Inc()
	h.log.Info("variable mapped",
		zap.Int64("context_tag_id", req.ContextTagID),
		zap.Int64("variable_id", req.VariableID),
		zap.Int64("subgroup_tag_id", req.SubgroupTagID))
	c.JSON(http.StatusOK, row)
}

func (h *Handler) DeleteMapping(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.mappings.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	metrics.MappingsRemoved.Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Mapping deleted successfully"})
}
