package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/evaluate"
	"github.com/yourorg/calibr8/internal/formula"
	"github.com/yourorg/calibr8/internal/metrics"
)

type evaluateRequest struct {
	FormulaID  int64           `json:"formula_id" binding:"required"`
	Parameters evaluate.Params `json:"parameters"`
}

func (h *Handler) ListFormulas(c *gin.Context) {
	list, err := h.formulas.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetFormula(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	f, err := h.formulas.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handler) FormulaVariables(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	vars, err := h.formulas.Variables(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, vars)
}

func (h *Handler) CreateFormula(c *gin.Context) {
	var req formula.Formula
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	f, err := h.formulas.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	metrics.FormulasCreated.Inc()
	h.log.Info("formula created", zap.Int64("formula_id", f.FormulaID), zap.Int("num_parameters", f.NumParameters))
	c.JSON(http.StatusCreated, f)
}

func (h *Handler) UpdateFormula(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req formula.Formula
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	f, err := h.formulas.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handler) DeleteFormula(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.formulas.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Formula deleted successfully"})
}

// EvaluateFormula answers 200 for evaluation failures, with the reason in
// "error"; only an unknown formula is an HTTP error.
func (h *Handler) EvaluateFormula(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	f, err := h.formulas.Get(c.Request.Context(), req.FormulaID)
	if err != nil {
		fail(c, err)
		return
	}
	params := req.Parameters
	if params == nil {
		params = evaluate.Params{}
	}
	resp := gin.H{"formula_id": f.FormulaID, "parameters": params}
	v, err := evaluate.Evaluate(f.FormulaExpression, params)
	if err != nil {
		var missing *evaluate.MissingParametersError
		if !errors.As(err, &missing) {
			h.log.Debug("evaluation failed", zap.Int64("formula_id", f.FormulaID), zap.Error(err))
		}
		metrics.FormulaEvaluations.WithLabelValues("error").Inc()
		resp["error"] = err.Error()
		c.JSON(http.StatusOK, resp)
		return
	}
	metrics.FormulaEvaluations.WithLabelValues("ok").Inc()
	resp["result"] = v
	c.JSON(http.StatusOK, resp)
}
