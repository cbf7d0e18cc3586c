package shedconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/toolshed-labs/shedconfig/types"
)

func setupStateStore(t *testing.T) (*FileStateStore, *Config) {
	f, err := filepath.Abs("./test_fixtures/simple/gemini.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	return NewFileStateStore(t.TempDir(), nil), c
}

func TestStateStoreSaveAndLoad(t *testing.T) {
	s, c := setupStateStore(t)

	require.False(t, s.Exists())

	err := s.Save(c)
	require.NoError(t, err)
	require.True(t, s.Exists())

	loaded, err := s.Load()
	require.NoError(t, err)

	require.Equal(t, c.DescriptorCount(), loaded.DescriptorCount())

	d, err := loaded.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)

	td := d.(*types.ToolDependency)
	require.Equal(t, "iuc", td.Owner)
	require.Equal(t, []string{"Sequence Analysis", "Variant Analysis"}, td.Categories)

	orig, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)
	require.Equal(t, orig.Metadata().Checksum.Processed, td.Meta.Checksum.Processed)
}

func TestStateStoreSaveReplacesExistingState(t *testing.T) {
	s, c := setupStateStore(t)

	require.NoError(t, s.Save(c))

	d, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)
	require.NoError(t, c.RemoveDescriptor(d))

	require.NoError(t, s.Save(c))

	loaded, err := s.Load()
	require.NoError(t, err)

	_, err = loaded.FindDescriptor("descriptor.tool_dependency.gemini")
	require.Error(t, err)
}

func TestStateStoreLoadWithoutStateReturnsError(t *testing.T) {
	s := NewFileStateStore(t.TempDir(), nil)

	_, err := s.Load()
	require.Error(t, err)
}

func TestStateStoreLoadCorruptStateReturnsError(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStateStore(dir, nil)

	err := os.WriteFile(filepath.Join(dir, "state.json"), []byte("not json"), 0644)
	require.NoError(t, err)

	_, err = s.Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "corrupt")
}

func TestStateStoreClear(t *testing.T) {
	s, c := setupStateStore(t)

	require.NoError(t, s.Save(c))
	require.True(t, s.Exists())

	require.NoError(t, s.Clear())
	require.False(t, s.Exists())

	// clearing an empty store is not an error
	require.NoError(t, s.Clear())
}
