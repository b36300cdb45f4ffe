package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Tutortoise/weapon-detection-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadLabelMap_Text(t *testing.T) {
	path := writeFile(t, "label_map.pbtxt", `
# weapons only
item {
  id: 1
  name: 'weapon'
}
item {
  name: "knife_raw"
  id: 2
  display_name: "knife"
}
item { id: 3 name: 'rifle' }
`)

	labels, err := LoadLabelMap(path, 0)
	require.NoError(t, err)
	assert.Equal(t, models.LabelMap{1: "weapon", 2: "knife", 3: "rifle"}, labels)
}

func TestLoadLabelMap_TextQuirks(t *testing.T) {
	path := writeFile(t, "label_map.pbtxt", `
item {
  id: 1
  name: "firearm"  # overridden below
  display_name: "hand\"gun"
}
item: {
  id: 2
  name: 'knife'
  unknown_field: 7
}
# trailing comment
`)

	labels, err := LoadLabelMap(path, 0)
	require.NoError(t, err)
	assert.Equal(t, models.LabelMap{1: `hand"gun`, 2: "knife"}, labels)
}

func TestLoadLabelMap_MaxClasses(t *testing.T) {
	path := writeFile(t, "label_map.pbtxt", `
item { id: 1 name: 'weapon' }
item { id: 5 name: 'other' }
`)

	labels, err := LoadLabelMap(path, 1)
	require.NoError(t, err)
	assert.Equal(t, models.LabelMap{1: "weapon"}, labels)
}

func TestLoadLabelMap_Background(t *testing.T) {
	path := writeFile(t, "label_map.pbtxt", `
item { id: 0 name: 'background' }
item { id: 1 name: 'weapon' }
`)
	labels, err := LoadLabelMap(path, 0)
	require.NoError(t, err)
	assert.Equal(t, models.LabelMap{1: "weapon"}, labels)

	path = writeFile(t, "bad.pbtxt", `item { id: 0 name: 'weapon' }`)
	_, err = LoadLabelMap(path, 0)
	assert.Error(t, err)
}

func TestLoadLabelMap_YAML(t *testing.T) {
	path := writeFile(t, "labels.yaml", "labels:\n  1: weapon\n  2: knife\n")

	labels, err := LoadLabelMap(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "knife", labels.Name(2))
	assert.Equal(t, models.UnknownClassName, labels.Name(9))
}

func TestLoadLabelMap_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing brace", "item id: 1"},
		{"unterminated", "item { id: 1 name: 'weapon'"},
		{"no id", "item { name: 'weapon' }"},
		{"bad id", "item { id: one name: 'weapon' }"},
		{"unterminated string", "item { id: 1 name: 'weapon }"},
		{"empty", ""},
		{"negative id", "item { id: -1 name: 'weapon' }"},
		{"not an item", "entry { id: 1 name: 'weapon' }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "label_map.pbtxt", tt.content)
			_, err := LoadLabelMap(path, 0)
			assert.Error(t, err)
		})
	}

	_, err := LoadLabelMap(filepath.Join(t.TempDir(), "missing.pbtxt"), 0)
	assert.Error(t, err)
}
