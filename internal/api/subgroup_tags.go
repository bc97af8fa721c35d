package api

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/db"
	"github.com/yourorg/calibr8/internal/export"
	"github.com/yourorg/calibr8/internal/formula"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type subgroupTagRequest struct {
	TagID               int64  `json:"tag_id" binding:"required"`
	TagName             string `json:"tag_name" binding:"required"`
	ParentSubgroupTagID *int64 `json:"parent_subgroup_tag_id"`
	FormulaID           *int64 `json:"formula_id"`
}

type assignFormulaRequest struct {
	FormulaID *int64 `json:"formula_id"`
}

func (h *Handler) ListSubgroupTags(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	tags, err := h.tags.ListBySubgroup(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// AddSubgroupTag attaches a masterlist tag to the subgroup in the path, or
// nests it under parent_subgroup_tag_id when that is given.
func (h *Handler) AddSubgroupTag(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req subgroupTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	in := db.NewSubgroupTag{
		TagID:               req.TagID,
		Name:                req.TagName,
		ParentSubgroupTagID: req.ParentSubgroupTagID,
		FormulaID:           req.FormulaID,
	}
	if in.ParentSubgroupTagID == nil {
		in.SubgroupID = &id
	}
	st, err := h.tags.Add(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) ChildrenTags(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	kids, err := h.tags.Children(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, kids)
}

func (h *Handler) DeleteSubgroupTag(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.tags.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subgroup tag deleted successfully"})
}

// AssignFormula sets formula_id on a subgroup tag; null clears it. Mappings
// owned by the tag are kept.
func (h *Handler) AssignFormula(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req assignFormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.tags.SetFormula(c.Request.Context(), id, req.FormulaID)
	if err != nil {
		fail(c, err)
		return
	}
	h.log.Info("formula assigned", zap.Int64("subgroup_tag_id", id), zap.Int64p("formula_id", req.FormulaID))
	c.JSON(http.StatusOK, st)
}

func (h *Handler) SubgroupTagFormula(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	st, err := h.tags.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if st.FormulaID == nil {
		detail(c, http.StatusNotFound, "No formula assigned to this subgroup tag")
		return
	}
	f, err := h.formulas.Get(c.Request.Context(), *st.FormulaID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// ExportSubgroupTag renders the tag, its formula, its children and its
// variable bindings as an xlsx download.
func (h *Handler) ExportSubgroupTag(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	st, err := h.tags.Get(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	out := export.SubgroupTag{Name: st.SubgroupTagName}

	if st.FormulaID != nil {
		f, err := h.formulas.Get(ctx, *st.FormulaID)
		switch {
		case db.IsNotFound(err):
		case err != nil:
			fail(c, err)
			return
		default:
			out.Expression = f.FormulaExpression
			rows, err := h.mappings.ListByContext(ctx, id)
			if err != nil {
				fail(c, err)
				return
			}
			bound := make(map[int64]string, len(rows))
			for _, r := range rows {
				bound[r.VariableID] = r.MappedTagName
			}
			vars := make([]formula.Variable, 0, len(f.Variables))
			for _, v := range f.Variables {
				vid := v.VariableID
				vars = append(vars, formula.Variable{ID: &vid, Name: v.VariableName})
			}
			ordered := formula.Formula{Expression: f.FormulaExpression, Variables: vars}.OrderedVariables()
			for _, v := range ordered {
				out.Bindings = append(out.Bindings, export.Binding{Variable: v.Name, Tag: bound[*v.ID]})
			}
		}
	}

	kids, err := h.tags.Children(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	for _, k := range kids {
		out.Children = append(out.Children, k.SubgroupTagName)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, out); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(id)+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
