package command

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brstgt/seaweed-admin/weed/admin"
	"github.com/brstgt/seaweed-admin/weed/util"
)

func testConfiguration(t *testing.T, toml string) *util.ViperProxy {
	v := viper.New()
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(strings.NewReader(toml)))
	return util.NewViperConfiguration(v)
}

const testAdminToml = `
[master]
addresses = [ "m1:9333", "m2:9333" ]

[collections]
pictures = "001"
documents = "010"

[ttl]
pictures = "7d"

[volume]
export_timezone = "UTC"

[sqlite]
enabled = true
dbFile = ":memory:"
`

func TestNewEnvironment(t *testing.T) {
	env, err := newEnvironment(testConfiguration(t, testAdminToml), false)
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.shells)
	assert.NotNil(t, env.store)
	assert.Equal(t, map[string]string{"pictures": "001", "documents": "010"}, env.collections.Replication)
	assert.Equal(t, "7d", env.collections.TtlOf("pictures"))
	assert.Equal(t, "UTC", env.exportLocation().String())
	assert.Equal(t, "http", env.httpClient.GetHttpScheme())

	// defaults fill what the file leaves out
	assert.Equal(t, admin.DefaultVolumePort, env.configuration.GetInt("volume.port"))
	assert.Equal(t, "root", env.configuration.GetString("ssh.user"))
	assert.Equal(t, []string{"m1:9333", "m2:9333"}, env.configuration.GetStringSlice("master.addresses"))
}

func TestNewEnvironmentRejectsInvalidReplication(t *testing.T) {
	_, err := newEnvironment(testConfiguration(t, `
[collections]
pictures = "0x1"

[sqlite]
enabled = true
dbFile = ":memory:"
`), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pictures")
}

func TestNewEnvironmentRequiresStore(t *testing.T) {
	_, err := newEnvironment(testConfiguration(t, `
[collections]
pictures = "001"
`), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no store enabled")
}

func TestExportLocationFallsBackToLocal(t *testing.T) {
	env := &environment{configuration: testConfiguration(t, `
[volume]
export_timezone = "Nowhere/Atlantis"
`)}
	assert.Equal(t, "Local", env.exportLocation().String())
}

func TestHttpsConfiguration(t *testing.T) {
	env, err := newEnvironment(testConfiguration(t, `
[http]
https = true

[sqlite]
enabled = true
dbFile = ":memory:"
`), false)
	require.NoError(t, err)
	defer env.Close()
	assert.Equal(t, "https", env.httpClient.GetHttpScheme())
}
