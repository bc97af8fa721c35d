package console

import (
	"context"

	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/catalogclient"
	"github.com/yourorg/calibr8/internal/mapping"
	"github.com/yourorg/calibr8/internal/registry"
)

// Controller turns user actions into catalog calls and store updates.
// Failures are dispatched as Failed and returned; nothing panics.
type Controller struct {
	store    *Store
	formulas *registry.Formulas
	mappings *registry.Mappings
	tags     *registry.SubgroupTags
	log      *zap.Logger
}

type ControllerConfig struct {
	Store    *Store
	Formulas *registry.Formulas
	Mappings *registry.Mappings
	Tags     *registry.SubgroupTags
	Log      *zap.Logger
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Store == nil {
		cfg.Store = NewStore(State{})
	}
	return &Controller{
		store:    cfg.Store,
		formulas: cfg.Formulas,
		mappings: cfg.Mappings,
		tags:     cfg.Tags,
		log:      cfg.Log,
	}
}

// NewClientController wires a controller to a catalog client.
func NewClientController(c *catalogclient.Client, store *Store, log *zap.Logger) *Controller {
	return NewController(ControllerConfig{
		Store:    store,
		Formulas: registry.NewFormulas(c, log),
		Mappings: registry.NewMappings(c, log),
		Tags:     registry.NewSubgroupTags(c),
		Log:      log,
	})
}

func (c *Controller) Store() *Store { return c.store }

func (c *Controller) State() State { return c.store.State() }

func failed[T any](c *Controller, r registry.Result[T]) registry.Result[T] {
	c.store.Dispatch(Failed{Message: r.Error})
	return r
}

// SelectSubgroup makes subgroupID current and returns its root tags.
func (c *Controller) SelectSubgroup(ctx context.Context, subgroupID int64) registry.Result[[]catalogclient.SubgroupTag] {
	c.store.Dispatch(SelectSubgroup{SubgroupID: subgroupID})
	res := c.tags.List(ctx, subgroupID)
	if !res.Success {
		return failed(c, res)
	}
	return res
}

// ToggleSubgroupTag selects tag and loads its formula and mappings, switching
// to the tag's subgroup first. When tag is already selected it is
// deselected instead.
func (c *Controller) ToggleSubgroupTag(ctx context.Context, tag catalogclient.SubgroupTag) registry.Result[State] {
	if c.State().TagID() == tag.SubgroupTagID && tag.SubgroupTagID != 0 {
		return registry.OK(c.store.Dispatch(DeselectTag{}))
	}
	if tag.SubgroupID != nil && *tag.SubgroupID != c.State().SubgroupID {
		c.store.Dispatch(SelectSubgroup{SubgroupID: *tag.SubgroupID})
	}
	c.store.Dispatch(SelectTag{Tag: tag})
	return c.load(ctx, tag)
}

// Refresh reloads the selected tag's formula and mappings.
func (c *Controller) Refresh(ctx context.Context) registry.Result[State] {
	st := c.State()
	if st.Tag == nil {
		return failed(c, registry.Fail[State](registry.KindPrecondition, "No subgroup tag selected"))
	}
	return c.load(ctx, *st.Tag)
}

func (c *Controller) load(ctx context.Context, tag catalogclient.SubgroupTag) registry.Result[State] {
	// the caller's copy of tag may predate a formula change, so always ask
	f := c.tags.Formula(ctx, tag.SubgroupTagID)
	if !f.Success {
		return failed(c, registry.Fail[State](f.Kind, f.Error))
	}
	loaded := TagLoaded{TagID: tag.SubgroupTagID, Formula: f.Data}
	m := c.mappings.List(ctx, tag.SubgroupTagID)
	if !m.Success {
		return failed(c, registry.Fail[State](m.Kind, m.Error))
	}
	loaded.Mappings = m.Data
	return registry.OK(c.store.Dispatch(loaded))
}

// AssignFormula assigns formulaID to the selected tag and reloads its
// mappings. Mappings of the previous formula's variables stay in the
// catalog but are no longer shown.
func (c *Controller) AssignFormula(ctx context.Context, formulaID int64) registry.Result[State] {
	st := c.State()
	if st.Tag == nil {
		return failed(c, registry.Fail[State](registry.KindPrecondition, "No subgroup tag selected"))
	}
	if formulaID <= 0 {
		return failed(c, registry.Fail[State](registry.KindPrecondition, "No formula selected"))
	}
	f := c.formulas.Get(ctx, formulaID)
	if !f.Success {
		return failed(c, registry.Fail[State](f.Kind, f.Error))
	}
	tag := c.tags.AssignFormula(ctx, st.Tag.SubgroupTagID, &formulaID)
	if !tag.Success {
		return failed(c, registry.Fail[State](tag.Kind, tag.Error))
	}
	m := c.mappings.List(ctx, st.Tag.SubgroupTagID)
	if !m.Success {
		return failed(c, registry.Fail[State](m.Kind, m.Error))
	}
	fm := f.Data
	c.log.Debug("formula assigned",
		zap.Int64("subgroup_tag_id", st.Tag.SubgroupTagID),
		zap.Int64("formula_id", formulaID))
	return registry.OK(c.store.Dispatch(FormulaSet{Tag: tag.Data, Formula: &fm, Mappings: m.Data}))
}

// ClearFormula removes the selected tag's formula. Its mappings are kept.
func (c *Controller) ClearFormula(ctx context.Context) registry.Result[State] {
	st := c.State()
	if st.Tag == nil {
		return failed(c, registry.Fail[State](registry.KindPrecondition, "No subgroup tag selected"))
	}
	tag := c.tags.AssignFormula(ctx, st.Tag.SubgroupTagID, nil)
	if !tag.Success {
		return failed(c, registry.Fail[State](tag.Kind, tag.Error))
	}
	return registry.OK(c.store.Dispatch(FormulaSet{Tag: tag.Data, Mappings: st.Mappings}))
}

// BindVariable maps variableID of the assigned formula to targetTagID.
// Variables outside the assigned formula are rejected without a request.
func (c *Controller) BindVariable(ctx context.Context, variableID, targetTagID int64) registry.Result[mapping.Mapping] {
	st := c.State()
	switch {
	case st.Tag == nil:
		return failed(c, registry.Fail[mapping.Mapping](registry.KindPrecondition, "No subgroup tag selected"))
	case st.Formula == nil:
		return failed(c, registry.Fail[mapping.Mapping](registry.KindPrecondition, "No formula assigned to the selected tag"))
	case !st.Formula.HasVariable(variableID):
		return failed(c, registry.Fail[mapping.Mapping](registry.KindPrecondition, "Variable does not belong to the assigned formula"))
	}
	res := c.mappings.CreateOrReplace(ctx, st.Tag.SubgroupTagID, variableID, targetTagID)
	if !res.Success {
		return failed(c, res)
	}
	c.store.Dispatch(MappingBound{TagID: st.Tag.SubgroupTagID, Mapping: res.Data})
	return res
}

// RemoveMapping deletes the mapping of variableID on the selected tag.
func (c *Controller) RemoveMapping(ctx context.Context, variableID int64) registry.Result[registry.Empty] {
	st := c.State()
	if st.Tag == nil {
		return failed(c, registry.Fail[registry.Empty](registry.KindPrecondition, "No subgroup tag selected"))
	}
	m, ok := st.Mappings.Get(variableID)
	if !ok {
		return failed(c, registry.Fail[registry.Empty](registry.KindPrecondition, "Variable is not mapped"))
	}
	res := c.mappings.Remove(ctx, m.ID)
	if !res.Success {
		return failed(c, res)
	}
	c.store.Dispatch(MappingRemoved{TagID: st.Tag.SubgroupTagID, MappingID: m.ID})
	return res
}
