package command

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminTomlExampleParses(t *testing.T) {
	configuration := testConfiguration(t, ADMIN_TOML_EXAMPLE)

	collections, err := loadCollections(configuration)
	require.NoError(t, err)
	assert.Equal(t, "001", collections.Replication["pictures"])
	assert.Equal(t, "010", collections.Replication["documents"])

	assert.True(t, configuration.GetBool("mysql.enabled"))
	assert.False(t, configuration.GetBool("sqlite.enabled"))
	assert.False(t, configuration.GetBool("postgres.enabled"))
	assert.Equal(t, "%s/purge/%s", configuration.GetString("frontend.invalidate_url"))
	assert.Equal(t, []string{"localhost:9333"}, configuration.GetStringSlice("master.addresses"))
}

func TestScaffoldWritesFile(t *testing.T) {
	dir := t.TempDir()
	root := NewRootCommand()
	root.SetArgs([]string{"scaffold", "--output", dir})
	require.NoError(t, root.Execute())

	written, err := os.ReadFile(filepath.Join(dir, "admin.toml"))
	require.NoError(t, err)
	assert.Equal(t, ADMIN_TOML_EXAMPLE, string(written))
}

func TestScaffoldPrints(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"scaffold"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "[collections]")
}
