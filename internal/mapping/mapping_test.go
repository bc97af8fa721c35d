package mapping

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestDisplayNamePriority(t *testing.T) {
	full := Mapping{
		MappedTagName:   "mapped",
		AssignedTag:     &AssignedTag{SubgroupTagName: "assigned"},
		TagName:         "tag",
		SubgroupTagName: "subgroup",
		Name:            "name",
	}
	assert.Equal(t, "mapped", DisplayName(&full))

	full.MappedTagName = ""
	assert.Equal(t, "assigned", DisplayName(&full))

	full.AssignedTag = &AssignedTag{}
	assert.Equal(t, "tag", DisplayName(&full))

	full.TagName = "  "
	assert.Equal(t, "subgroup", DisplayName(&full))

	full.SubgroupTagName = ""
	name, field := ResolveDisplayName(&full)
	assert.Equal(t, "name", name)
	assert.Equal(t, "name", field)

	full.Name = ""
	assert.Equal(t, FallbackTagName, DisplayName(&full))
	assert.Equal(t, UnknownTagName, DisplayName(nil))
}

func TestDisplayNameFieldsOrder(t *testing.T) {
	assert.Equal(t, []string{
		"mapped_tag_name",
		"assigned_tag.subgroup_tag_name",
		"tag_name",
		"subgroup_tag_name",
		"name",
	}, DisplayNameFields())
}

func TestDecodeBackendShapes(t *testing.T) {
	raw := `[
		{"mapping_id": 1, "variable_id": 10, "context_tag_id": 5, "subgroup_tag_id": 7, "mapped_tag_name": "Flow A"},
		{"mapping_id": 2, "variable_id": 11, "assigned_tag": {"subgroup_tag_id": 8, "subgroup_tag_name": "Flow B"}},
		{"mapping_id": 3, "tag_name": "orphan row without variable"}
	]`
	var rows []Mapping
	require.NoError(t, json.Unmarshal([]byte(raw), &rows))

	l := Index(rows)
	require.Len(t, l, 2)

	m, ok := l.Get(10)
	require.True(t, ok)
	assert.Equal(t, "Flow A", DisplayName(&m))
	assert.Equal(t, int64(7), m.TargetTagID)

	m, ok = l.Get(11)
	require.True(t, ok)
	assert.Equal(t, "Flow B", DisplayName(&m))
}

func TestIndexKeepsNewestPerVariable(t *testing.T) {
	l := Index([]Mapping{
		{ID: 4, VariableID: ptr(int64(10)), Name: "new"},
		{ID: 2, VariableID: ptr(int64(10)), Name: "old"},
	})
	require.Len(t, l, 1)
	assert.Equal(t, "new", l[10].Name)
}

func TestLookupCopyOnWrite(t *testing.T) {
	base := Index([]Mapping{{ID: 1, VariableID: ptr(int64(10))}})

	replaced := base.Put(Mapping{ID: 9, VariableID: ptr(int64(10))})
	assert.Equal(t, int64(1), base[10].ID, "Put must not mutate the receiver")
	assert.Equal(t, int64(9), replaced[10].ID)
	assert.Len(t, replaced, 1)

	removed := replaced.DeleteMapping(9)
	assert.Len(t, removed, 0)
	assert.Len(t, replaced, 1)

	two := base.Put(Mapping{ID: 3, VariableID: ptr(int64(2))})
	ms := two.Mappings()
	require.Len(t, ms, 2)
	assert.Equal(t, int64(3), ms[0].ID)
	assert.Len(t, two.Delete(2), 1)
}
