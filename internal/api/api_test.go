package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yourorg/calibr8/internal/db/dbtest"
	"github.com/yourorg/calibr8/internal/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	t *testing.T
	r *gin.Engine
}

func newServer(t *testing.T, archive storage.Archive) *testServer {
	d := dbtest.SQLite(t)
	return &testServer{t: t, r: NewRouter(Deps{DB: d.DB, Archive: archive})}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *testServer) json(method, path string, body any, wantStatus int, out any) {
	s.t.Helper()
	w := s.do(method, path, body)
	require.Equal(s.t, wantStatus, w.Code, "%s %s: %s", method, path, w.Body.String())
	if out != nil {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), out))
	}
}

func (s *testServer) upload(name, content string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(s.t, err)
	_, _ = fw.Write([]byte(content))
	require.NoError(s.t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload_masterlist", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

type idOnly struct {
	AssetID       int64 `json:"asset_id"`
	SubgroupID    int64 `json:"subgroup_id"`
	SubgroupTagID int64 `json:"subgroup_tag_id"`
	FileID        int64 `json:"file_id"`
	TagID         int64 `json:"tag_id"`
	MappingID     int64 `json:"mapping_id"`
}

type formulaResp struct {
	FormulaID     int64  `json:"formula_id"`
	NumParameters int    `json:"num_parameters"`
	Expression    string `json:"formula_expression"`
	Variables     []struct {
		VariableID   int64  `json:"variable_id"`
		VariableName string `json:"variable_name"`
	} `json:"variables"`
}

// seed creates an asset, a subgroup and a masterlist and returns the subgroup
// id and the masterlist tag ids.
func (s *testServer) seed() (int64, []int64) {
	s.t.Helper()
	var a, sg idOnly
	s.json(http.MethodPost, "/api/assets", gin.H{"asset_name": "Boiler", "asset_type": "boiler"}, http.StatusCreated, &a)
	s.json(http.MethodPost, fmt.Sprintf("/api/assets/%d/subgroups", a.AssetID), gin.H{}, http.StatusCreated, &sg)

	w := s.upload("plant.csv", "tags,unit\n\"TI-1,TI-2\",degC\nFT-3,m3/h\n")
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var up idOnly
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &up))

	var tags []idOnly
	s.json(http.MethodGet, fmt.Sprintf("/api/tags?file_id=%d", up.FileID), nil, http.StatusOK, &tags)
	require.Len(s.t, tags, 3)
	ids := make([]int64, 0, len(tags))
	for _, tg := range tags {
		ids = append(ids, tg.TagID)
	}
	return sg.SubgroupID, ids
}

func (s *testServer) addTag(subgroupID, tagID int64, name string, formulaID *int64) int64 {
	s.t.Helper()
	var st idOnly
	body := gin.H{"tag_id": tagID, "tag_name": name}
	if formulaID != nil {
		body["formula_id"] = *formulaID
	}
	s.json(http.MethodPost, fmt.Sprintf("/api/subgroups/%d/tags", subgroupID), body, http.StatusCreated, &st)
	return st.SubgroupTagID
}

func (s *testServer) createFormula(name, expr string) formulaResp {
	s.t.Helper()
	var f formulaResp
	s.json(http.MethodPost, "/api/formulas", gin.H{"formula_name": name, "formula_expression": expr}, http.StatusCreated, &f)
	return f
}

func TestAssetsEndpoints(t *testing.T) {
	s := newServer(t, storage.Archive{})
	var a idOnly
	s.json(http.MethodPost, "/api/assets", gin.H{"asset_name": "Turbine", "asset_type": "turbine"}, http.StatusCreated, &a)
	s.json(http.MethodPut, fmt.Sprintf("/api/assets/%d", a.AssetID), gin.H{"asset_name": "Turbine 2"}, http.StatusOK, nil)

	var list []struct {
		AssetName string `json:"asset_name"`
	}
	s.json(http.MethodGet, "/api/assets", nil, http.StatusOK, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Turbine 2", list[0].AssetName)

	w := s.do(http.MethodGet, "/api/assets/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"detail"`)

	w = s.do(http.MethodGet, "/api/assets/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Invalid ID"}`, w.Body.String())
}

func TestFormulaLifecycle(t *testing.T) {
	s := newServer(t, storage.Archive{})
	f := s.createFormula("Efficiency", "$out / $in * 100")
	assert.Equal(t, 2, f.NumParameters)
	require.Len(t, f.Variables, 2)
	assert.Equal(t, "out", f.Variables[0].VariableName)

	var vars []struct {
		VariableName string `json:"variable_name"`
	}
	s.json(http.MethodGet, fmt.Sprintf("/api/formulas/%d/variables", f.FormulaID), nil, http.StatusOK, &vars)
	assert.Len(t, vars, 2)

	var upd formulaResp
	s.json(http.MethodPut, fmt.Sprintf("/api/formulas/%d", f.FormulaID),
		gin.H{"formula_name": "Eff", "formula_expression": "$x"}, http.StatusOK, &upd)
	assert.Equal(t, 1, upd.NumParameters)

	w := s.do(http.MethodPost, "/api/formulas", gin.H{
		"formula_name": "Bad", "formula_expression": "$a + $b",
		"variables": []gin.H{{"variable_name": "a"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	s.json(http.MethodDelete, fmt.Sprintf("/api/formulas/%d", f.FormulaID), nil, http.StatusOK, nil)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, fmt.Sprintf("/api/formulas/%d", f.FormulaID), nil).Code)
}

func TestEvaluateFormula(t *testing.T) {
	s := newServer(t, storage.Archive{})
	f := s.createFormula("Ratio", "$a / $b")

	var ok map[string]any
	s.json(http.MethodPost, "/api/formulas/evaluate",
		gin.H{"formula_id": f.FormulaID, "parameters": gin.H{"a": 9, "b": 3}}, http.StatusOK, &ok)
	assert.Equal(t, 3.0, ok["result"])
	assert.NotContains(t, ok, "error")

	var missing map[string]any
	s.json(http.MethodPost, "/api/formulas/evaluate",
		gin.H{"formula_id": f.FormulaID, "parameters": gin.H{"a": 1}}, http.StatusOK, &missing)
	assert.Equal(t, "missing parameters: b", missing["error"])
	assert.NotContains(t, missing, "result")

	var zero map[string]any
	s.json(http.MethodPost, "/api/formulas/evaluate",
		gin.H{"formula_id": f.FormulaID, "parameters": gin.H{"a": 1, "b": 0}}, http.StatusOK, &zero)
	assert.Equal(t, "division by zero", zero["error"])

	root := s.createFormula("Root", "$a ^ 0.5")
	var nan map[string]any
	s.json(http.MethodPost, "/api/formulas/evaluate",
		gin.H{"formula_id": root.FormulaID, "parameters": gin.H{"a": -1}}, http.StatusOK, &nan)
	assert.Equal(t, "result is not a finite number", nan["error"])
	assert.NotContains(t, nan, "result")

	var inf map[string]any
	s.json(http.MethodPost, "/api/formulas/evaluate",
		gin.H{"formula_id": f.FormulaID, "parameters": gin.H{"a": "Inf", "b": 1}}, http.StatusOK, &inf)
	assert.Contains(t, inf["error"], "not a finite number")

	assert.Equal(t, http.StatusNotFound,
		s.do(http.MethodPost, "/api/formulas/evaluate", gin.H{"formula_id": 999}).Code)
}

func TestMappingReplaceAndRemove(t *testing.T) {
	s := newServer(t, storage.Archive{})
	subgroupID, tagIDs := s.seed()
	f := s.createFormula("F", "$a + $b")
	owner := s.addTag(subgroupID, tagIDs[0], "Owner", &f.FormulaID)
	t1 := s.addTag(subgroupID, tagIDs[1], "First", nil)
	t2 := s.addTag(subgroupID, tagIDs[2], "Second", nil)
	varA := f.Variables[0].VariableID

	var m1, m2 struct {
		MappingID     int64  `json:"mapping_id"`
		MappedTagName string `json:"mapped_tag_name"`
	}
	s.json(http.MethodPut, "/api/variable-mappings",
		gin.H{"variable_id": varA, "subgroup_tag_id": t1, "context_tag_id": owner}, http.StatusOK, &m1)
	assert.Equal(t, "First", m1.MappedTagName)
	s.json(http.MethodPut, "/api/variable-mappings",
		gin.H{"variable_id": varA, "subgroup_tag_id": t2, "context_tag_id": owner}, http.StatusOK, &m2)
	assert.Equal(t, m1.MappingID, m2.MappingID)
	assert.Equal(t, "Second", m2.MappedTagName)

	var rows []map[string]any
	s.json(http.MethodGet, fmt.Sprintf("/api/subgroup-tags/%d/variable-mappings", owner), nil, http.StatusOK, &rows)
	require.Len(t, rows, 1)

	// a variable of another formula is rejected
	g := s.createFormula("G", "$z")
	w := s.do(http.MethodPut, "/api/variable-mappings",
		gin.H{"variable_id": g.Variables[0].VariableID, "subgroup_tag_id": t1, "context_tag_id": owner})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	s.json(http.MethodDelete, fmt.Sprintf("/api/variable-mappings/%d", m2.MappingID), nil, http.StatusOK, nil)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, fmt.Sprintf("/api/variable-mappings/%d", m2.MappingID), nil).Code)
	s.json(http.MethodGet, fmt.Sprintf("/api/subgroup-tags/%d/variable-mappings", owner), nil, http.StatusOK, &rows)
	assert.Empty(t, rows)
}

func TestAssignAndClearFormula(t *testing.T) {
	s := newServer(t, storage.Archive{})
	subgroupID, tagIDs := s.seed()
	f := s.createFormula("F", "$a")
	st := s.addTag(subgroupID, tagIDs[0], "Owner", nil)

	var got struct {
		FormulaID *int64 `json:"formula_id"`
	}
	s.json(http.MethodPut, fmt.Sprintf("/api/subgroups/%d/formula", st), gin.H{"formula_id": f.FormulaID}, http.StatusOK, &got)
	require.NotNil(t, got.FormulaID)
	assert.Equal(t, f.FormulaID, *got.FormulaID)

	var viaTag formulaResp
	s.json(http.MethodGet, fmt.Sprintf("/api/subgroup-tags/%d/formula", st), nil, http.StatusOK, &viaTag)
	assert.Equal(t, f.FormulaID, viaTag.FormulaID)

	s.json(http.MethodPut, fmt.Sprintf("/api/subgroups/%d/formula", st), gin.H{"formula_id": nil}, http.StatusOK, &got)
	assert.Nil(t, got.FormulaID)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, fmt.Sprintf("/api/subgroup-tags/%d/formula", st), nil).Code)

	assert.Equal(t, http.StatusNotFound,
		s.do(http.MethodPut, fmt.Sprintf("/api/subgroups/%d/formula", st), gin.H{"formula_id": 999}).Code)
}

func TestChildrenAndExport(t *testing.T) {
	s := newServer(t, storage.Archive{})
	subgroupID, tagIDs := s.seed()
	f := s.createFormula("Heat", "$flow * $temp")
	parent := s.addTag(subgroupID, tagIDs[0], "Heat duty", &f.FormulaID)

	var child idOnly
	s.json(http.MethodPost, fmt.Sprintf("/api/subgroups/%d/tags", subgroupID),
		gin.H{"tag_id": tagIDs[1], "tag_name": "Flow", "parent_subgroup_tag_id": parent}, http.StatusCreated, &child)
	s.json(http.MethodPut, "/api/variable-mappings",
		gin.H{"variable_id": f.Variables[0].VariableID, "subgroup_tag_id": child.SubgroupTagID, "context_tag_id": parent}, http.StatusOK, nil)

	var kids []idOnly
	s.json(http.MethodGet, fmt.Sprintf("/api/subgroups/%d/children_tags", parent), nil, http.StatusOK, &kids)
	require.Len(t, kids, 1)

	var roots []idOnly
	s.json(http.MethodGet, fmt.Sprintf("/api/subgroups/%d/tags", subgroupID), nil, http.StatusOK, &roots)
	require.Len(t, roots, 1)

	w := s.do(http.MethodPost, fmt.Sprintf("/api/subgroups/%d/export", parent), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), fmt.Sprintf("subgroup_tag_%d_export.xlsx", parent))

	x, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows("Subgroup Tag Data")
	require.NoError(t, err)
	assert.Equal(t, []string{"Heat duty", "$flow * $temp", "Flow"}, rows[1])
	vars, err := x.GetRows("Variables")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Variable", "Mapped Tag"}, {"$flow", "Flow"}, {"$temp", "None"}}, vars)
}

func TestUploadMasterlist(t *testing.T) {
	base := "file://" + t.TempDir()
	store, err := storage.New(t.Context(), base)
	require.NoError(t, err)
	s := newServer(t, storage.Archive{Store: store, Base: base})

	w := s.upload("plant.csv", "tags\nA, B\nC\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		FileID       int64  `json:"file_id"`
		TagsImported int64  `json:"tags_imported"`
		ArchiveURI   string `json:"archive_uri"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 3, resp.TagsImported)
	assert.True(t, strings.HasPrefix(resp.ArchiveURI, base))

	var latest idOnly
	s.json(http.MethodGet, "/api/masterlist/latest", nil, http.StatusOK, &latest)
	assert.Equal(t, resp.FileID, latest.FileID)
	s.json(http.MethodGet, fmt.Sprintf("/api/masterlist/%d", resp.FileID), nil, http.StatusOK, nil)

	w = s.upload("plant.txt", "tags\nA\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Invalid file type"}`, w.Body.String())

	w = s.upload("plant.csv", "name\nA\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "tags column 'tags' not found")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/tags?file_id=999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/tags", nil).Code)
}

func TestUploadMasterlistTooLarge(t *testing.T) {
	d := dbtest.SQLite(t)
	s := &testServer{t: t, r: NewRouter(Deps{DB: d.DB, MaxUploadBytes: 1024})}
	big := "tags\n" + strings.Repeat("TI-0000001\n", 200)

	w := s.upload("plant.csv", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"detail":"File too large: limit is 1024 bytes"}`, w.Body.String())

	// no Content-Length, so only the body reader can catch it
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "plant.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte(big))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload_masterlist", io.MultiReader(&buf))
	req.ContentLength = -1
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = s.upload("plant.csv", "tags\nTI-1\n")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var lists []map[string]any
	s.json(http.MethodGet, "/api/masterlists", nil, http.StatusOK, &lists)
	assert.Len(t, lists, 1)
}

func TestTemplatesEndpoints(t *testing.T) {
	s := newServer(t, storage.Archive{})
	f := s.createFormula("F", "$a")
	s.json(http.MethodPost, "/api/templates", gin.H{"formula_id": f.FormulaID, "template_name": "T"}, http.StatusCreated, nil)
	var list []map[string]any
	s.json(http.MethodGet, "/api/templates", nil, http.StatusOK, &list)
	assert.Len(t, list, 1)
	assert.Equal(t, http.StatusNotFound,
		s.do(http.MethodPost, "/api/templates", gin.H{"formula_id": 999, "template_name": "T"}).Code)
}

func TestDeleteSubgroupTag(t *testing.T) {
	s := newServer(t, storage.Archive{})
	subgroupID, tagIDs := s.seed()
	st := s.addTag(subgroupID, tagIDs[0], "Gone", nil)
	s.json(http.MethodDelete, fmt.Sprintf("/api/subgroup-tags/%d", st), nil, http.StatusOK, nil)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, fmt.Sprintf("/api/subgroup-tags/%d", st), nil).Code)
}
