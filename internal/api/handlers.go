package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yourorg/calibr8/internal/db"
	"github.com/yourorg/calibr8/internal/storage"
)

// Handler serves the catalog REST API. Errors are answered as {"detail": "..."}.
type Handler struct {
	assets    db.AssetRepository
	lists     db.MasterlistRepository
	formulas  db.FormulaRepository
	tags      db.SubgroupTagRepository
	mappings  db.MappingRepository
	templates db.TemplateRepository
	archive   storage.Archive
	maxUpload int64
	log       *zap.Logger
}

func NewHandler(database *gorm.DB, archive storage.Archive, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		assets:    db.NewAssetRepo(database),
		lists:     db.NewMasterlistRepo(database),
		formulas:  db.NewFormulaRepo(database),
		tags:      db.NewSubgroupTagRepo(database),
		mappings:  db.NewMappingRepo(database),
		templates: db.NewTemplateRepo(database),
		archive:   archive,
		maxUpload: DefaultMaxUploadBytes,
		log:       log,
	}
}

// Register mounts every catalog route on r (normally the /api group).
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/assets", h.ListAssets)
	r.POST("/assets", h.CreateAsset)
	r.GET("/assets/:id", h.GetAsset)
	r.PUT("/assets/:id", h.RenameAsset)
	r.GET("/assets/:id/subgroups", h.ListSubgroups)
	r.POST("/assets/:id/subgroups", h.CreateSubgroup)

	r.GET("/subgroups/:id", h.GetSubgroup)
	r.PUT("/subgroups/:id", h.RenameSubgroup)
	r.GET("/subgroups/:id/tags", h.ListSubgroupTags)
	r.POST("/subgroups/:id/tags", h.AddSubgroupTag)
	r.GET("/subgroups/:id/children_tags", h.ChildrenTags)
	r.PUT("/subgroups/:id/formula", h.AssignFormula)
	r.POST("/subgroups/:id/export", h.ExportSubgroupTag)

	r.GET("/subgroup-tags/:id/formula", h.SubgroupTagFormula)
	r.GET("/subgroup-tags/:id/variable-mappings", h.ListMappings)
	r.DELETE("/subgroup-tags/:id", h.DeleteSubgroupTag)

	r.GET("/formulas", h.ListFormulas)
	r.POST("/formulas", h.CreateFormula)
	r.POST("/formulas/evaluate", h.EvaluateFormula)
	r.GET("/formulas/:id", h.GetFormula)
	r.PUT("/formulas/:id", h.UpdateFormula)
	r.DELETE("/formulas/:id", h.DeleteFormula)
	r.GET("/formulas/:id/variables", h.FormulaVariables)

	r.PUT("/variable-mappings", h.UpsertMapping)
	r.DELETE("/variable-mappings/:id", h.DeleteMapping)

	r.POST("/upload_masterlist", h.UploadMasterlist)
	r.GET("/tags", h.TagsByFile)
	r.GET("/masterlists", h.ListMasterlists)
	r.GET("/masterlist/latest", h.LatestMasterlist)
	r.GET("/masterlist/:id", h.GetMasterlist)

	r.GET("/templates", h.ListTemplates)
	r.POST("/templates", h.CreateTemplate)
}

// fail maps repository sentinels onto HTTP statuses.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, db.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, db.ErrConflict):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		detail(c, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return id, true
}
