package bridge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "joint.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultCatalog_Layout(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Validate())

	active := 0
	for i, j := range c.Joints {
		assert.Equal(t, i, j.ID)
		if j.Active {
			active++
		}
	}
	// Slots 18 and 25 are unused in hubo-ach.
	assert.Equal(t, JointCount-2, active)
	assert.False(t, c.Joints[18].Active)
	assert.False(t, c.Joints[25].Active)

	id, ok := c.Lookup("RKN")
	require.True(t, ok)
	assert.Equal(t, 29, id)
	id, ok = c.Lookup("LF5")
	require.True(t, ok)
	assert.Equal(t, JointCount-1, id)

	_, ok = c.Lookup("")
	assert.False(t, ok, "unused slots must not be found by empty name")
	_, ok = c.Lookup("HEAD")
	assert.False(t, ok)

	assert.Equal(t, "FT_R_HAND", c.Sensors[0].Name)
	assert.Equal(t, 0x2F+4, c.Sensors[4].Board)
}

func TestCatalog_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Catalog)
	}{
		{"misnumbered slot", func(c *Catalog) { c.Joints[3].ID = 4 }},
		{"active unnamed slot", func(c *Catalog) { c.Joints[18].Active = true }},
		{"duplicate name", func(c *Catalog) { c.Joints[2].Name = "NKY" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultCatalog()
			tc.mutate(c)
			var ce *CatalogError
			assert.ErrorAs(t, c.Validate(), &ce)
		})
	}
}

func TestLoadCatalog_EmptyPathIsDefault(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), c)
}

func TestLoadCatalog_AppliesOverrides(t *testing.T) {
	// GIVEN a joint table disabling the neck and retuning a knee
	path := writeTable(t, `
joints:
  - name: NK1
    active: false
  - name: RKN
    id: 29
    harmonic: 160
    direction: -1
`)

	// WHEN it is loaded
	c, err := LoadCatalog(path)
	require.NoError(t, err)

	// THEN listed fields change and everything else keeps its default
	def := DefaultCatalog()
	assert.False(t, c.Joints[2].Active)
	assert.Equal(t, 160.0, c.Joints[29].Params.Harmonic)
	assert.Equal(t, -1.0, c.Joints[29].Params.Direction)
	assert.Equal(t, def.Joints[29].Params.Encoder, c.Joints[29].Params.Encoder)
	assert.True(t, c.Joints[29].Active)
	assert.Equal(t, def.Joints[0], c.Joints[0])
}

func TestLoadCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", "joints:\n  - name: RKN\n    gear: 3\n"},
		{"unknown joint", "joints:\n  - name: HEAD\n"},
		{"unnamed entry", "joints:\n  - active: false\n"},
		{"listed twice", "joints:\n  - name: RKN\n  - name: RKN\n"},
		{"id mismatch", "joints:\n  - name: RKN\n    id: 3\n"},
		{"zero encoder", "joints:\n  - name: RKN\n    encoder: 0\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadCatalog(writeTable(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
