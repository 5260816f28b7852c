package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the export routes. Workflow routes are mounted only when
// workflows is non-nil, i.e. when Temporal is reachable.
func NewRouter(exports *ExportHandler, workflows *WorkflowHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = 8 << 20

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "X-Export-ID"},
	}))

	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/exports", exports.CreateExport)
		apiV1.POST("/exports/upload", exports.UploadFile)

		if workflows != nil {
			apiV1.POST("/workflows/exports", workflows.StartExportWorkflow)
			apiV1.GET("/workflows/:id/messages", workflows.GetWorkflowMessages)
		}
	}
	return r
}
