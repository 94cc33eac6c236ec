package main

import (
	"path/filepath"
	"testing"

	"crm-ai-orchestrator/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddUpdateAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai-registry.json")

	require.NoError(t, runAdd([]string{"-path", path, "-id", "m1", "-name", "Model One", "-type", "search", "-priority", "2"}))
	assert.Error(t, runAdd([]string{"-path", path, "-id", "m1", "-name", "Again", "-type", "search"}))

	require.NoError(t, runUpdate([]string{"-path", path, "-id", "m1", "-field", "active", "-value", "false"}))
	require.NoError(t, runValidate([]string{"-path", path}))

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	m, ok := reg.Model("m1")
	require.True(t, ok)
	assert.False(t, m.IsActive)
	assert.Equal(t, 2, m.Priority)
}

func TestAddRejectsUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai-registry.json")

	err := runAdd([]string{"-path", path, "-id", "m1", "-name", "Model One", "-type", "vision"})
	assert.ErrorIs(t, err, registry.ErrSchemaViolation)
	assert.NoFileExists(t, path)
}

func TestUpdateModel(t *testing.T) {
	f := &registry.File{Models: []registry.AIModel{{ID: "m1", Priority: 1}}}

	require.NoError(t, updateModel(f, "m1", "priority", "5"))
	assert.Equal(t, 5, f.Models[0].Priority)

	assert.Error(t, updateModel(f, "m1", "priority", "high"))
	assert.Error(t, updateModel(f, "m1", "owner", "kim"))
	assert.Error(t, updateModel(f, "m2", "name", "x"))
}
