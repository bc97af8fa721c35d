package catalogclient

import (
	"encoding/json"
	"time"
)

type Asset struct {
	AssetID   int64      `json:"asset_id"`
	AssetName string     `json:"asset_name"`
	AssetType string     `json:"asset_type"`
	CreatedAt time.Time  `json:"created_at"`
	Subgroups []Subgroup `json:"subgroups,omitempty"`
}

type Subgroup struct {
	SubgroupID   int64         `json:"subgroup_id"`
	AssetID      int64         `json:"asset_id"`
	SubgroupName string        `json:"subgroup_name"`
	SubgroupTags []SubgroupTag `json:"subgroup_tags,omitempty"`
}

// SubgroupTag is a tag attached to a subgroup. FormulaID may point at a
// formula that has since been deleted.
type SubgroupTag struct {
	SubgroupTagID       int64  `json:"subgroup_tag_id"`
	TagID               int64  `json:"tag_id"`
	SubgroupID          *int64 `json:"subgroup_id,omitempty"`
	SubgroupTagName     string `json:"subgroup_tag_name"`
	ParentSubgroupTagID *int64 `json:"parent_subgroup_tag_id,omitempty"`
	FormulaID           *int64 `json:"formula_id"`
}

// NewSubgroupTag is the body of POST /subgroups/:id/tags.
type NewSubgroupTag struct {
	TagID               int64  `json:"tag_id"`
	TagName             string `json:"tag_name"`
	ParentSubgroupTagID *int64 `json:"parent_subgroup_tag_id,omitempty"`
	FormulaID           *int64 `json:"formula_id,omitempty"`
}

type MasterList struct {
	FileID     int64     `json:"file_id"`
	FileName   string    `json:"file_name"`
	ArchiveURI string    `json:"archive_uri,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Tag struct {
	TagID   int64           `json:"tag_id"`
	FileID  int64           `json:"file_id"`
	TagName string          `json:"tag_name"`
	TagType string          `json:"tag_type"`
	TagData json.RawMessage `json:"tag_data,omitempty"`
}

type UploadResult struct {
	Message      string `json:"message"`
	FileID       int64  `json:"file_id"`
	FileName     string `json:"file_name"`
	TagsImported int64  `json:"tags_imported"`
	ArchiveURI   string `json:"archive_uri"`
}

type Template struct {
	TemplateID   int64  `json:"template_id"`
	FormulaID    int64  `json:"formula_id"`
	TemplateName string `json:"template_name"`
}

// Evaluation is the answer of POST /formulas/evaluate. Exactly one of Result
// and Error is set.
type Evaluation struct {
	FormulaID  int64          `json:"formula_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// OK reports whether the backend produced a value.
func (e Evaluation) OK() bool { return e.Error == "" }

type ImportRun struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

type ImportStatus struct {
	WorkflowID string          `json:"workflow_id"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
}

type mappingRequest struct {
	ContextTagID  int64 `json:"context_tag_id"`
	VariableID    int64 `json:"variable_id"`
	SubgroupTagID int64 `json:"subgroup_tag_id"`
}

type evaluateRequest struct {
	FormulaID  int64          `json:"formula_id"`
	Parameters map[string]any `json:"parameters"`
}

type formulaRef struct {
	FormulaID *int64 `json:"formula_id"`
}
