package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yourorg/calibr8/internal/metrics"
	"github.com/yourorg/calibr8/internal/storage"
)

// Deps are the collaborators of the catalog server. Temporal is optional;
// without it the import routes are not mounted.
type Deps struct {
	DB       *gorm.DB
	Archive  storage.Archive
	Temporal client.Client
	Log      *zap.Logger
	// MaxUploadBytes caps a masterlist upload; DefaultMaxUploadBytes when zero.
	MaxUploadBytes int64
}

// NewRouter builds the gin engine serving /api and /metrics.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = DefaultMaxUploadBytes

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
	}))

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Calibr8 API"})
	})

	apiGroup := r.Group("/api")
	h := NewHandler(d.DB, d.Archive, d.Log)
	if d.MaxUploadBytes > 0 {
		h.maxUpload = d.MaxUploadBytes
	}
	h.Register(apiGroup)
	if d.Temporal != nil {
		NewWorkflowHandler(d.Temporal, d.Log).Register(apiGroup)
	}
	return r
}
