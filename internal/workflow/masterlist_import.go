package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yourorg/calibr8/internal/types"
)

const (
	// TaskQueue is shared by the worker and the API that starts imports.
	TaskQueue = "calibr8"
	// MasterlistImportName is the registered workflow type name.
	MasterlistImportName = "MasterlistImportWorkflow"
)

// RegisterOptions registers MasterlistImportWorkflow under MasterlistImportName.
func RegisterOptions() workflow.RegisterOptions {
	return workflow.RegisterOptions{Name: MasterlistImportName}
}

// MasterlistImportWorkflow parses an archived masterlist and stores its tags.
func MasterlistImportWorkflow(ctx workflow.Context, params types.MasterlistImportParams) (types.MasterlistImportResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
			// a file without a tags column will not parse on retry either
			NonRetryableErrorTypes: []string{"InvalidMasterlist"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var parsed types.ParsedMasterlist
	if err := workflow.ExecuteActivity(ctx, "Activities.ParseMasterlistFile", params).Get(ctx, &parsed); err != nil {
		return types.MasterlistImportResult{}, err
	}

	var result types.MasterlistImportResult
	if err := workflow.ExecuteActivity(ctx, "Activities.SaveMasterlistTags", parsed).Get(ctx, &result); err != nil {
		return types.MasterlistImportResult{}, err
	}
	workflow.GetLogger(ctx).Info("masterlist imported", "file_id", result.FileID, "tags", result.TagsImported)
	return result, nil
}
