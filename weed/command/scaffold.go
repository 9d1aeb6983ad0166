package command

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func scaffoldCommand() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "scaffold",
		Short: "generate the admin.toml configuration file",
		Long:  `Generate admin.toml with all possible configurations for you to customize.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath != "" {
				return os.WriteFile(filepath.Join(outputPath, configName+".toml"), []byte(ADMIN_TOML_EXAMPLE), 0644)
			}
			io.WriteString(cmd.OutOrStdout(), ADMIN_TOML_EXAMPLE)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "if not empty, save the configuration file to this directory")
	return cmd
}

const (
	ADMIN_TOML_EXAMPLE = `
# A sample TOML config file for weed-admin
# Put this file to one of the location, with descending priority
#    ./admin.toml
#    $HOME/.seaweed-admin/admin.toml
#    /usr/local/etc/seaweed-admin/admin.toml
#    /etc/seaweed-admin/admin.toml
# Every key can be overridden by an environment variable,
# e.g. WEED_ADMIN_MASTER_ADDRESSES or WEED_ADMIN_SSH_USER

[master]
addresses = [ "localhost:9333" ]

[http]
timeout = "60s"
# talk https to masters and volume servers
https = false
insecure_skip_verify = false

# replication of every collection, volumes of other collections are not checked
[collections]
"" = "000"
pictures = "001"
documents = "010"

# ttl written with repaired files
[ttl]
# thumbnails = "7d"

[volume]
port = 8080
data_root = "/weedfs/"
# time zone of the volume servers, weed export -newer is given in local time
export_timezone = "Local"

[ssh]
user = "root"
port = 22
key_file = "~/.ssh/id_rsa"
# leave empty to skip host key verification
known_hosts = "~/.ssh/known_hosts"
# run remote commands through sudo as this user
sudo_user = ""
timeout = "10s"

[frontend]
# caches in front of the volume servers, purged after a delete
url = ""
# format with the frontend url and the file id
invalidate_url = "%s/purge/%s"

[metrics]
# prometheus push gateway
address = ""
interval_seconds = 15

####################################################
# store for repair and compaction watermarks,
# compaction locks and the delete queue
# enable exactly one
####################################################

[sqlite]
# local on disk, for a single admin host
enabled = false
dbFile = "./seaweed-admin.db"

[mysql]
# tables are created on start if missing:
# seaweed_repair_status, seaweed_compaction_status,
# seaweed_compaction_lock, seaweed_delete_queue
enabled = true
hostname = "localhost"
port = 3306
username = "root"
password = ""
database = ""              # create or use an existing database
connection_max_idle = 2
connection_max_open = 100
connection_max_lifetime_seconds = 0

[postgres]
enabled = false
hostname = "localhost"
port = 5432
username = "postgres"
password = ""
database = "postgres"          # create or use an existing database
schema = ""
sslmode = "disable"
pgbouncer_compatible = false
connection_max_idle = 100
connection_max_open = 100
connection_max_lifetime_seconds = 0
`
)
