package registry

import (
	"context"

	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/mapping"
)

// MappingBackend is the part of the catalog client the mapping registry uses.
type MappingBackend interface {
	ListMappings(ctx context.Context, subgroupTagID int64) ([]mapping.Mapping, error)
	PutMapping(ctx context.Context, contextTagID, variableID, targetTagID int64) (mapping.Mapping, error)
	DeleteMapping(ctx context.Context, mappingID int64) error
}

// Mappings reads and writes one subgroup tag's variable mappings. Nothing is
// cached; each call goes to the catalog.
type Mappings struct {
	backend MappingBackend
	log     *zap.Logger
}

func NewMappings(backend MappingBackend, log *zap.Logger) *Mappings {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mappings{backend: backend, log: log}
}

// List returns the tag's mappings indexed by variable id. Rows without a
// variable id are dropped.
func (r *Mappings) List(ctx context.Context, subgroupTagID int64) Result[mapping.Lookup] {
	if subgroupTagID <= 0 {
		return precondition[mapping.Lookup]("No subgroup tag selected")
	}
	rows, err := r.backend.ListMappings(ctx, subgroupTagID)
	if err != nil {
		return fromError[mapping.Lookup](err)
	}
	lookup := mapping.Index(rows)
	if dropped := len(rows) - len(lookup); dropped > 0 {
		r.log.Debug("mapping rows skipped", zap.Int64("subgroup_tag_id", subgroupTagID), zap.Int("rows", dropped))
	}
	return OK(lookup)
}

// CreateOrReplace binds variableID, for subgroupTagID, to targetTagID. A
// previous binding of the same variable is replaced.
func (r *Mappings) CreateOrReplace(ctx context.Context, subgroupTagID, variableID, targetTagID int64) Result[mapping.Mapping] {
	switch {
	case subgroupTagID <= 0:
		return precondition[mapping.Mapping]("No subgroup tag selected")
	case variableID <= 0:
		return precondition[mapping.Mapping]("No variable selected")
	case targetTagID <= 0:
		return precondition[mapping.Mapping]("No tag selected for the variable")
	}
	m, err := r.backend.PutMapping(ctx, subgroupTagID, variableID, targetTagID)
	if err != nil {
		return fromError[mapping.Mapping](err)
	}
	r.log.Debug("variable mapped",
		zap.Int64("subgroup_tag_id", subgroupTagID),
		zap.Int64("variable_id", variableID),
		zap.Int64("mapping_id", m.ID))
	return OK(m)
}

// Remove deletes one mapping. An unknown id fails with a backend 404.
func (r *Mappings) Remove(ctx context.Context, mappingID int64) Result[Empty] {
	if mappingID <= 0 {
		return precondition[Empty]("No mapping selected")
	}
	if err := r.backend.DeleteMapping(ctx, mappingID); err != nil {
		return fromError[Empty](err)
	}
	return OK(Empty{})
}
