package console

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/calibr8/internal/api"
	"github.com/yourorg/calibr8/internal/catalogclient"
	"github.com/yourorg/calibr8/internal/db/dbtest"
	"github.com/yourorg/calibr8/internal/formula"
	"github.com/yourorg/calibr8/internal/registry"
)

type consoleFixture struct {
	client     *catalogclient.Client
	ctrl       *Controller
	subgroupID int64
	tags       map[string]catalogclient.SubgroupTag
}

func newConsole(t *testing.T, names ...string) *consoleFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(api.NewRouter(api.Deps{DB: dbtest.SQLite(t).DB}))
	t.Cleanup(srv.Close)
	c := catalogclient.New(srv.URL+"/api", 5*time.Second, nil)
	ctx := t.Context()

	up, err := c.UploadMasterlist(ctx, "plant.csv", strings.NewReader("tags\n"+strings.Join(names, "\n")+"\n"))
	require.NoError(t, err)
	raw, err := c.Tags(ctx, up.FileID)
	require.NoError(t, err)
	a, err := c.CreateAsset(ctx, "Unit", "unit")
	require.NoError(t, err)
	sg, err := c.CreateSubgroup(ctx, a.AssetID, "Group")
	require.NoError(t, err)

	fx := &consoleFixture{
		client:     c,
		ctrl:       NewClientController(c, NewStore(State{}), nil),
		subgroupID: sg.SubgroupID,
		tags:       map[string]catalogclient.SubgroupTag{},
	}
	for _, tg := range raw {
		st, err := c.AddSubgroupTag(ctx, sg.SubgroupID, catalogclient.NewSubgroupTag{TagID: tg.TagID, TagName: tg.TagName})
		require.NoError(t, err)
		fx.tags[tg.TagName] = st
	}
	return fx
}

func (fx *consoleFixture) formula(t *testing.T, expr string) formula.Formula {
	t.Helper()
	f, err := formula.New("F", expr, "")
	require.NoError(t, err)
	f, err = fx.client.CreateFormula(t.Context(), f)
	require.NoError(t, err)
	return f
}

func (fx *consoleFixture) selectTag(t *testing.T, name string) State {
	t.Helper()
	res := fx.ctrl.ToggleSubgroupTag(t.Context(), fx.tags[name])
	require.True(t, res.Success, res.Error)
	return res.Data
}

func variableNames(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Variable)
	}
	return out
}

func TestSelectSubgroupListsTags(t *testing.T) {
	fx := newConsole(t, "FT-1", "PT-1")
	res := fx.ctrl.SelectSubgroup(t.Context(), fx.subgroupID)
	require.True(t, res.Success, res.Error)
	assert.Len(t, res.Data, 2)
	assert.Equal(t, PhaseSubgroup, fx.ctrl.State().Phase())

	missing := fx.ctrl.SelectSubgroup(t.Context(), fx.subgroupID+10)
	assert.False(t, missing.Success)
	assert.Equal(t, registry.KindBackend, missing.Kind)
	assert.Equal(t, missing.Error, fx.ctrl.State().LastError)
}

func TestToggleSameTagDeselects(t *testing.T) {
	fx := newConsole(t, "FT-1")
	fx.ctrl.SelectSubgroup(t.Context(), fx.subgroupID)
	st := fx.selectTag(t, "FT-1")
	assert.Equal(t, PhaseTag, st.Phase())

	st = fx.selectTag(t, "FT-1")
	assert.Equal(t, PhaseSubgroup, st.Phase())
	assert.Nil(t, st.Tag)
}

func TestToggleTagFromAnotherSubgroupSwitchesSubgroup(t *testing.T) {
	fx := newConsole(t, "FT-1", "FT-2")
	ctx := t.Context()
	sg, err := fx.client.GetSubgroup(ctx, fx.subgroupID)
	require.NoError(t, err)
	other, err := fx.client.CreateSubgroup(ctx, sg.AssetID, "Other")
	require.NoError(t, err)
	moved, err := fx.client.AddSubgroupTag(ctx, other.SubgroupID, catalogclient.NewSubgroupTag{
		TagID: fx.tags["FT-2"].TagID, TagName: "FT-2",
	})
	require.NoError(t, err)
	require.NotNil(t, moved.SubgroupID)

	fx.ctrl.SelectSubgroup(ctx, fx.subgroupID)
	st := fx.selectTag(t, "FT-1")
	assert.Equal(t, fx.subgroupID, st.SubgroupID)

	res := fx.ctrl.ToggleSubgroupTag(ctx, moved)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, other.SubgroupID, res.Data.SubgroupID)
	assert.EqualValues(t, moved.SubgroupTagID, res.Data.TagID())
	assert.Equal(t, PhaseTag, res.Data.Phase())
}

func TestSelectingAnotherTagDropsPreviousState(t *testing.T) {
	fx := newConsole(t, "A", "B", "SRC")
	ctx := t.Context()
	f := fx.formula(t, "$x + $y")
	fx.ctrl.SelectSubgroup(ctx, fx.subgroupID)

	fx.selectTag(t, "A")
	require.True(t, fx.ctrl.AssignFormula(ctx, *f.ID).Success)
	x, _ := fx.ctrl.State().Variable("x")
	require.True(t, fx.ctrl.BindVariable(ctx, *x.ID, fx.tags["SRC"].SubgroupTagID).Success)
	require.Len(t, fx.ctrl.State().Mappings, 1)

	st := fx.selectTag(t, "B")
	assert.EqualValues(t, fx.tags["B"].SubgroupTagID, st.TagID())
	assert.Nil(t, st.Formula)
	assert.Empty(t, st.Mappings)
	assert.Empty(t, Rows(st))

	// coming back to A reloads its own formula and mapping
	st = fx.selectTag(t, "A")
	require.NotNil(t, st.Formula)
	assert.Equal(t, []string{"x", "y"}, variableNames(Rows(st)))
	assert.Len(t, st.Mappings, 1)
}

func TestReassignedFormulaShowsOnlyItsVariables(t *testing.T) {
	fx := newConsole(t, "TAG", "S1", "S2", "S3")
	ctx := t.Context()
	fF := fx.formula(t, "$x * $y")
	fG := fx.formula(t, "$p")
	fx.ctrl.SelectSubgroup(ctx, fx.subgroupID)
	fx.selectTag(t, "TAG")

	res := fx.ctrl.AssignFormula(ctx, *fF.ID)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"x", "y"}, variableNames(Rows(res.Data)))
	for name, src := range map[string]string{"x": "S1", "y": "S2"} {
		v, ok := fx.ctrl.State().Variable(name)
		require.True(t, ok)
		require.True(t, fx.ctrl.BindVariable(ctx, *v.ID, fx.tags[src].SubgroupTagID).Success)
	}

	cleared := fx.ctrl.ClearFormula(ctx)
	require.True(t, cleared.Success, cleared.Error)
	assert.Equal(t, PhaseTag, cleared.Data.Phase())
	assert.Empty(t, Rows(cleared.Data))
	assert.Nil(t, cleared.Data.Tag.FormulaID)

	res = fx.ctrl.AssignFormula(ctx, *fG.ID)
	require.True(t, res.Success, res.Error)
	rows := Rows(res.Data)
	assert.Equal(t, []string{"p"}, variableNames(rows))
	assert.False(t, rows[0].Mapped)
	// the old bindings are still in the catalog, just not shown
	assert.Len(t, res.Data.Mappings, 2)

	p, _ := fx.ctrl.State().Variable("p")
	bound := fx.ctrl.BindVariable(ctx, *p.ID, fx.tags["S3"].SubgroupTagID)
	require.True(t, bound.Success, bound.Error)
	rows = Rows(fx.ctrl.State())
	require.Len(t, rows, 1)
	assert.Equal(t, "S3", rows[0].TagName)
}

func TestBindVariableOutsideFormulaIsRejected(t *testing.T) {
	fx := newConsole(t, "TAG", "SRC")
	ctx := t.Context()
	fF := fx.formula(t, "$a")
	fG := fx.formula(t, "$b")

	res := fx.ctrl.BindVariable(ctx, 1, fx.tags["SRC"].SubgroupTagID)
	assert.Equal(t, registry.KindPrecondition, res.Kind)

	fx.ctrl.SelectSubgroup(ctx, fx.subgroupID)
	fx.selectTag(t, "TAG")
	res = fx.ctrl.BindVariable(ctx, *fF.Variables[0].ID, fx.tags["SRC"].SubgroupTagID)
	assert.Equal(t, registry.KindPrecondition, res.Kind)
	assert.Equal(t, "No formula assigned to the selected tag", res.Error)

	require.True(t, fx.ctrl.AssignFormula(ctx, *fF.ID).Success)
	res = fx.ctrl.BindVariable(ctx, *fG.Variables[0].ID, fx.tags["SRC"].SubgroupTagID)
	assert.False(t, res.Success)
	assert.Equal(t, registry.KindPrecondition, res.Kind)
	assert.Equal(t, res.Error, fx.ctrl.State().LastError)

	list, err := fx.client.ListMappings(ctx, fx.tags["TAG"].SubgroupTagID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRemoveMapping(t *testing.T) {
	fx := newConsole(t, "TAG", "SRC")
	ctx := t.Context()
	f := fx.formula(t, "$a * 2")
	fx.ctrl.SelectSubgroup(ctx, fx.subgroupID)
	fx.selectTag(t, "TAG")
	require.True(t, fx.ctrl.AssignFormula(ctx, *f.ID).Success)
	a := *f.Variables[0].ID

	notMapped := fx.ctrl.RemoveMapping(ctx, a)
	assert.Equal(t, registry.KindPrecondition, notMapped.Kind)

	require.True(t, fx.ctrl.BindVariable(ctx, a, fx.tags["SRC"].SubgroupTagID).Success)
	require.True(t, fx.ctrl.RemoveMapping(ctx, a).Success)
	assert.False(t, Rows(fx.ctrl.State())[0].Mapped)

	refreshed := fx.ctrl.Refresh(ctx)
	require.True(t, refreshed.Success)
	assert.Empty(t, refreshed.Data.Mappings)
}

func TestDeletedFormulaReadsAsUnassigned(t *testing.T) {
	fx := newConsole(t, "TAG")
	ctx := t.Context()
	f := fx.formula(t, "$a")
	fx.ctrl.SelectSubgroup(ctx, fx.subgroupID)
	fx.selectTag(t, "TAG")
	require.True(t, fx.ctrl.AssignFormula(ctx, *f.ID).Success)
	require.NoError(t, fx.client.DeleteFormula(ctx, *f.ID))

	res := fx.ctrl.Refresh(ctx)
	require.True(t, res.Success, res.Error)
	assert.Nil(t, res.Data.Formula)
	assert.Equal(t, PhaseTag, res.Data.Phase())
}
