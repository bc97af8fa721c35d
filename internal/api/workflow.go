package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/masterlist"
	"github.com/yourorg/calibr8/internal/types"
	"github.com/yourorg/calibr8/internal/workflow"
)

type WorkflowHandler struct {
	temporalClient client.Client
	log            *zap.Logger
}

func NewWorkflowHandler(temporalClient client.Client, log *zap.Logger) *WorkflowHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkflowHandler{temporalClient: temporalClient, log: log}
}

func (h *WorkflowHandler) Register(r gin.IRouter) {
	r.POST("/masterlist/imports", h.StartMasterlistImport)
	r.GET("/workflows/:id/status", h.GetWorkflowStatus)
}

type StartImportRequest struct {
	FileURI  string `json:"file_uri" binding:"required"`
	FileName string `json:"file_name" binding:"required"`
}

type StartWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// StartMasterlistImport starts an asynchronous import of a masterlist that is
// already in object storage.
func (h *WorkflowHandler) StartMasterlistImport(c *gin.Context) {
	var req StartImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	if !masterlist.Supported(req.FileName) {
		detail(c, http.StatusBadRequest, "Invalid file type")
		return
	}

	run, err := h.temporalClient.ExecuteWorkflow(
		c.Request.Context(),
		client.StartWorkflowOptions{TaskQueue: workflow.TaskQueue},
		workflow.MasterlistImportName,
		types.MasterlistImportParams{FileURI: req.FileURI, FileName: req.FileName},
	)
	if err != nil {
		detail(c, http.StatusInternalServerError, "Failed to start workflow: "+err.Error())
		return
	}
	h.log.Info("masterlist import started", zap.String("workflow_id", run.GetID()), zap.String("uri", req.FileURI))
	c.JSON(http.StatusAccepted, StartWorkflowResponse{WorkflowID: run.GetID(), RunID: run.GetRunID()})
}

// GetWorkflowStatus reports the execution status, with the result once completed.
func (h *WorkflowHandler) GetWorkflowStatus(c *gin.Context) {
	workflowID := c.Param("id")
	ctx := c.Request.Context()

	describe, err := h.temporalClient.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		detail(c, http.StatusNotFound, "Failed to describe workflow: "+err.Error())
		return
	}
	info := describe.GetWorkflowExecutionInfo()
	resp := gin.H{
		"workflow_id": workflowID,
		"status":      info.GetStatus().String(),
		"start_time":  info.GetStartTime().AsTime(),
	}
	if info.GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED {
		var result types.MasterlistImportResult
		if err := h.temporalClient.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err == nil {
			resp["result"] = result
		}
	}
	c.JSON(http.StatusOK, resp)
}
