package command

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/brstgt/seaweed-admin/weed/util"
)

// runId is logged when a command starts and when it fails, so parallel cron runs can be told apart.
var runId = uuid.New().String()

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "weed-admin",
		Short: "maintenance tooling for SeaweedFS clusters",
		Long: `weed-admin keeps a SeaweedFS cluster healthy: it compares and repairs
replicas, compacts volumes, restores broken volume files and retries deletes
that could not be applied to every replica.

  Configuration is read from admin.toml in ".", "$HOME/.seaweed-admin/",
  "/usr/local/etc/seaweed-admin/" or "/etc/seaweed-admin/".
  Generate an example with: weed-admin scaffold`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// glog refuses to log before the go flag set is parsed
			flag.CommandLine.Parse(nil)
			glog.V(1).Infof("%s run %s", cmd.CommandPath(), runId)
		},
	}
	root.PersistentFlags().Var(&util.ConfigurationFileDirectory, "config_dir", "directory with the admin.toml file")
	addGlogFlags(root.PersistentFlags())

	root.AddCommand(
		compareCommand(),
		repairCommand(),
		compactCommand(),
		fixCommand(),
		largeFilesCommand(),
		volumeInfoCommand(),
		volumeServerCommand(),
		deleteQueueCommand(),
		serverCommand(),
		scaffoldCommand(),
		versionCommand(),
	)
	return root
}

// addGlogFlags exposes the glog flags without their one letter shorthands,
// so --v sets the verbosity and -v stays free for volume ids.
func addGlogFlags(flags *pflag.FlagSet) {
	flag.CommandLine.VisitAll(func(goflag *flag.Flag) {
		if flags.Lookup(goflag.Name) != nil {
			return
		}
		f := pflag.PFlagFromGoFlag(goflag)
		f.Shorthand = ""
		flags.AddFlag(f)
	})
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer glog.Flush()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		glog.Errorf("run %s: %v", runId, err)
		return 1
	}
	return 0
}
