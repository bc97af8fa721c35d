// Package catalogclient talks to the Calibr8 catalog REST API.
package catalogclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/formula"
	"github.com/yourorg/calibr8/internal/mapping"
	"github.com/yourorg/calibr8/internal/metrics"
)

// Client issues one request per call and never retries.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// New creates a client for baseURL (including the /api prefix). A zero
// timeout leaves requests unbounded.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	return &Client{httpClient: client, logger: logger}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.httpClient.R().SetContext(ctx)
}

// do sends body (if any) and decodes a 2xx answer into out (if any).
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	req := c.request(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	_, err := c.send(op, req, method, path)
	return err
}

func (c *Client) send(op string, req *resty.Request, method, path string) (*resty.Response, error) {
	var eb errorBody
	resp, err := req.SetError(&eb).Execute(method, path)
	if err != nil && isDecodeError(err) && resp != nil && resp.RawResponse != nil {
		metrics.BackendRequests.WithLabelValues(op, "error").Inc()
		c.logger.Warn("catalog response unreadable",
			zap.String("op", op),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
			zap.Error(err))
		return resp, &DecodeError{Op: op, Status: resp.StatusCode(), Err: err}
	}
	if err != nil {
		metrics.BackendRequests.WithLabelValues(op, "transport").Inc()
		c.logger.Warn("catalog request failed", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.IsError() {
		metrics.BackendRequests.WithLabelValues(op, "error").Inc()
		apiErr := &APIError{Op: op, Status: resp.StatusCode(), Detail: eb.message(resp.StatusCode())}
		c.logger.Debug("catalog request rejected",
			zap.String("op", op),
			zap.Int("status", apiErr.Status),
			zap.String("detail", apiErr.Detail))
		return resp, apiErr
	}
	metrics.BackendRequests.WithLabelValues(op, "ok").Inc()
	return resp, nil
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// Assets

func (c *Client) ListAssets(ctx context.Context) ([]Asset, error) {
	var out []Asset
	err := c.do(ctx, "list_assets", http.MethodGet, "/assets", nil, &out)
	return out, err
}

func (c *Client) GetAsset(ctx context.Context, id int64) (Asset, error) {
	var out Asset
	err := c.do(ctx, "get_asset", http.MethodGet, fmt.Sprintf("/assets/%d", id), nil, &out)
	return out, err
}

func (c *Client) CreateAsset(ctx context.Context, name, assetType string) (Asset, error) {
	var out Asset
	body := map[string]string{"asset_name": name, "asset_type": assetType}
	err := c.do(ctx, "create_asset", http.MethodPost, "/assets", body, &out)
	return out, err
}

func (c *Client) RenameAsset(ctx context.Context, id int64, name string) (Asset, error) {
	var out Asset
	body := map[string]string{"asset_name": name}
	err := c.do(ctx, "rename_asset", http.MethodPut, fmt.Sprintf("/assets/%d", id), body, &out)
	return out, err
}

func (c *Client) ListSubgroups(ctx context.Context, assetID int64) ([]Subgroup, error) {
	var out []Subgroup
	err := c.do(ctx, "list_subgroups", http.MethodGet, fmt.Sprintf("/assets/%d/subgroups", assetID), nil, &out)
	return out, err
}

func (c *Client) CreateSubgroup(ctx context.Context, assetID int64, name string) (Subgroup, error) {
	var out Subgroup
	body := map[string]string{"subgroup_name": name}
	err := c.do(ctx, "create_subgroup", http.MethodPost, fmt.Sprintf("/assets/%d/subgroups", assetID), body, &out)
	return out, err
}

func (c *Client) GetSubgroup(ctx context.Context, id int64) (Subgroup, error) {
	var out Subgroup
	err := c.do(ctx, "get_subgroup", http.MethodGet, fmt.Sprintf("/subgroups/%d", id), nil, &out)
	return out, err
}

func (c *Client) RenameSubgroup(ctx context.Context, id int64, name string) (Subgroup, error) {
	var out Subgroup
	body := map[string]string{"subgroup_name": name}
	err := c.do(ctx, "rename_subgroup", http.MethodPut, fmt.Sprintf("/subgroups/%d", id), body, &out)
	return out, err
}

// Subgroup tags

func (c *Client) ListSubgroupTags(ctx context.Context, subgroupID int64) ([]SubgroupTag, error) {
	var out []SubgroupTag
	err := c.do(ctx, "list_subgroup_tags", http.MethodGet, fmt.Sprintf("/subgroups/%d/tags", subgroupID), nil, &out)
	return out, err
}

// AddSubgroupTag attaches a tag to subgroupID, or under in.ParentSubgroupTagID when set.
func (c *Client) AddSubgroupTag(ctx context.Context, subgroupID int64, in NewSubgroupTag) (SubgroupTag, error) {
	var out SubgroupTag
	err := c.do(ctx, "add_subgroup_tag", http.MethodPost, fmt.Sprintf("/subgroups/%d/tags", subgroupID), in, &out)
	return out, err
}

func (c *Client) ChildTags(ctx context.Context, subgroupTagID int64) ([]SubgroupTag, error) {
	var out []SubgroupTag
	err := c.do(ctx, "child_tags", http.MethodGet, fmt.Sprintf("/subgroups/%d/children_tags", subgroupTagID), nil, &out)
	return out, err
}

func (c *Client) DeleteSubgroupTag(ctx context.Context, subgroupTagID int64) error {
	return c.do(ctx, "delete_subgroup_tag", http.MethodDelete, fmt.Sprintf("/subgroup-tags/%d", subgroupTagID), nil, nil)
}

// SetFormula assigns formulaID to the subgroup tag; nil clears it.
func (c *Client) SetFormula(ctx context.Context, subgroupTagID int64, formulaID *int64) (SubgroupTag, error) {
	var out SubgroupTag
	err := c.do(ctx, "set_formula", http.MethodPut, fmt.Sprintf("/subgroups/%d/formula", subgroupTagID), formulaRef{FormulaID: formulaID}, &out)
	return out, err
}

// TagFormula returns the formula assigned to the subgroup tag. It answers a
// 404 APIError when none is assigned.
func (c *Client) TagFormula(ctx context.Context, subgroupTagID int64) (formula.Formula, error) {
	var out formula.Formula
	err := c.do(ctx, "tag_formula", http.MethodGet, fmt.Sprintf("/subgroup-tags/%d/formula", subgroupTagID), nil, &out)
	return out, err
}

// Export downloads the xlsx export of a subgroup tag.
func (c *Client) Export(ctx context.Context, subgroupTagID int64) ([]byte, error) {
	resp, err := c.send("export", c.request(ctx), http.MethodPost, fmt.Sprintf("/subgroups/%d/export", subgroupTagID))
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Formulas

func (c *Client) ListFormulas(ctx context.Context) ([]formula.Formula, error) {
	var out []formula.Formula
	err := c.do(ctx, "list_formulas", http.MethodGet, "/formulas", nil, &out)
	return out, err
}

func (c *Client) GetFormula(ctx context.Context, id int64) (formula.Formula, error) {
	var out formula.Formula
	err := c.do(ctx, "get_formula", http.MethodGet, fmt.Sprintf("/formulas/%d", id), nil, &out)
	return out, err
}

// CreateFormula posts f as is; callers supply the variable list.
func (c *Client) CreateFormula(ctx context.Context, f formula.Formula) (formula.Formula, error) {
	var out formula.Formula
	err := c.do(ctx, "create_formula", http.MethodPost, "/formulas", f, &out)
	return out, err
}

func (c *Client) UpdateFormula(ctx context.Context, id int64, f formula.Formula) (formula.Formula, error) {
	var out formula.Formula
	err := c.do(ctx, "update_formula", http.MethodPut, fmt.Sprintf("/formulas/%d", id), f, &out)
	return out, err
}

func (c *Client) DeleteFormula(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_formula", http.MethodDelete, fmt.Sprintf("/formulas/%d", id), nil, nil)
}

func (c *Client) FormulaVariables(ctx context.Context, id int64) ([]formula.Variable, error) {
	var out []formula.Variable
	err := c.do(ctx, "formula_variables", http.MethodGet, fmt.Sprintf("/formulas/%d/variables", id), nil, &out)
	return out, err
}

// Evaluate asks the backend to compute the formula. Evaluation failures come
// back in Evaluation.Error with a nil error.
func (c *Client) Evaluate(ctx context.Context, id int64, params map[string]any) (Evaluation, error) {
	var out Evaluation
	if params == nil {
		params = map[string]any{}
	}
	err := c.do(ctx, "evaluate", http.MethodPost, "/formulas/evaluate", evaluateRequest{FormulaID: id, Parameters: params}, &out)
	return out, err
}

// Variable mappings

func (c *Client) ListMappings(ctx context.Context, subgroupTagID int64) ([]mapping.Mapping, error) {
	var out []mapping.Mapping
	err := c.do(ctx, "list_mappings", http.MethodGet, fmt.Sprintf("/subgroup-tags/%d/variable-mappings", subgroupTagID), nil, &out)
	return out, err
}

// PutMapping binds variableID, in the context of contextTagID, to targetTagID.
// An existing binding for the pair is replaced.
func (c *Client) PutMapping(ctx context.Context, contextTagID, variableID, targetTagID int64) (mapping.Mapping, error) {
	var out mapping.Mapping
	body := mappingRequest{ContextTagID: contextTagID, VariableID: variableID, SubgroupTagID: targetTagID}
	err := c.do(ctx, "put_mapping", http.MethodPut, "/variable-mappings", body, &out)
	return out, err
}

func (c *Client) DeleteMapping(ctx context.Context, mappingID int64) error {
	return c.do(ctx, "delete_mapping", http.MethodDelete, fmt.Sprintf("/variable-mappings/%d", mappingID), nil, nil)
}

// Masterlists

func (c *Client) UploadMasterlist(ctx context.Context, fileName string, r io.Reader) (UploadResult, error) {
	var out UploadResult
	req := c.request(ctx).SetFileReader("file", fileName, r).SetResult(&out)
	_, err := c.send("upload_masterlist", req, http.MethodPost, "/upload_masterlist")
	return out, err
}

func (c *Client) ListMasterlists(ctx context.Context) ([]MasterList, error) {
	var out []MasterList
	err := c.do(ctx, "list_masterlists", http.MethodGet, "/masterlists", nil, &out)
	return out, err
}

func (c *Client) LatestMasterlist(ctx context.Context) (MasterList, error) {
	var out MasterList
	err := c.do(ctx, "latest_masterlist", http.MethodGet, "/masterlist/latest", nil, &out)
	return out, err
}

func (c *Client) Tags(ctx context.Context, fileID int64) ([]Tag, error) {
	var out []Tag
	req := c.request(ctx).SetQueryParam("file_id", fmt.Sprint(fileID)).SetResult(&out)
	_, err := c.send("tags", req, http.MethodGet, "/tags")
	return out, err
}

// StartImport queues an asynchronous import of a masterlist already in object storage.
func (c *Client) StartImport(ctx context.Context, fileURI, fileName string) (ImportRun, error) {
	var out ImportRun
	body := map[string]string{"file_uri": fileURI, "file_name": fileName}
	err := c.do(ctx, "start_import", http.MethodPost, "/masterlist/imports", body, &out)
	return out, err
}

func (c *Client) ImportStatus(ctx context.Context, workflowID string) (ImportStatus, error) {
	var out ImportStatus
	err := c.do(ctx, "import_status", http.MethodGet, "/workflows/"+workflowID+"/status", nil, &out)
	return out, err
}

// Templates

func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var out []Template
	err := c.do(ctx, "list_templates", http.MethodGet, "/templates", nil, &out)
	return out, err
}

func (c *Client) CreateTemplate(ctx context.Context, formulaID int64, name string) (Template, error) {
	var out Template
	body := map[string]any{"formula_id": formulaID, "template_name": name}
	err := c.do(ctx, "create_template", http.MethodPost, "/templates", body, &out)
	return out, err
}
