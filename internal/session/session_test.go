package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/calibr8/internal/catalogclient"
	"github.com/yourorg/calibr8/internal/console"
	"github.com/yourorg/calibr8/internal/formula"
	"github.com/yourorg/calibr8/internal/mapping"
)

func sampleState() console.State {
	fid, vid := int64(3), int64(11)
	return console.State{
		SubgroupID: 2,
		Tag:        &catalogclient.SubgroupTag{SubgroupTagID: 7, SubgroupTagName: "FT-100", FormulaID: &fid},
		Formula: &formula.Formula{
			ID: &fid, Name: "Flow", Expression: "$dp * 2", NumParameters: 1,
			Variables: []formula.Variable{{ID: &vid, Name: "dp"}},
		},
		Mappings: mapping.Lookup{11: {ID: 40, VariableID: &vid, MappedTagName: "PT-1"}},
	}
}

func testStores(t *testing.T) map[string]Store {
	b, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]Store{"badger": b, "memory": NewMemoryStore()}
}

func TestSaveLoad(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load("nope")
			assert.ErrorIs(t, err, ErrNotFound)

			id := NewID()
			want := sampleState()
			require.NoError(t, s.Save(id, want))
			got, err := s.Load(id)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, console.PhaseFormula, got.Phase())
			assert.Equal(t, "PT-1", console.Rows(got)[0].TagName)

			require.NoError(t, s.Delete(id))
			assert.ErrorIs(t, s.Delete(id), ErrNotFound)
		})
	}
}

func TestListNewestFirst(t *testing.T) {
	b, err := OpenInMemory()
	require.NoError(t, err)
	defer b.Close()
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return t0 }
	require.NoError(t, b.Save("old", console.State{SubgroupID: 1}))
	b.now = func() time.Time { return t0.Add(time.Minute) }
	require.NoError(t, b.Save("new", sampleState()))

	infos, err := b.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "new", infos[0].ID)
	assert.Equal(t, console.PhaseFormula, infos[0].Phase)
	assert.Equal(t, console.PhaseSubgroup, infos[1].Phase)
}

func TestBindPersistsDispatches(t *testing.T) {
	s := NewMemoryStore()
	store, done, err := Bind(s, "cli")
	require.NoError(t, err)
	store.Dispatch(console.SelectSubgroup{SubgroupID: 4})
	store.Dispatch(console.SelectTag{Tag: catalogclient.SubgroupTag{SubgroupTagID: 9}})
	require.NoError(t, done())

	got, err := s.Load("cli")
	require.NoError(t, err)
	assert.EqualValues(t, 9, got.TagID())

	again, done, err := Bind(s, "cli")
	require.NoError(t, err)
	defer done()
	assert.EqualValues(t, 4, again.State().SubgroupID)
}
