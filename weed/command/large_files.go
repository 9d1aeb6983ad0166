package command

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/brstgt/seaweed-admin/weed/admin"
)

type LargeFilesOptions struct {
	dryRun bool
}

func largeFilesCommand() *cobra.Command {
	o := &LargeFilesOptions{}
	cmd := &cobra.Command{
		Use:   "large-files",
		Short: "restore volume files above 32GiB from a healthy replica",
		Long: `Large-files finds .dat files above 32GiB on all volume servers. Such files
cannot be served by the volume server. Each one is replaced by the copy of a
replica that is not affected, while its volume server is stopped.

  Volumes where every replica is too large are only reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLargeFiles(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().BoolVarP(&o.dryRun, "dry-run", "n", false, "only print the restore plan")
	return cmd
}

func runLargeFiles(ctx context.Context, out io.Writer, o *LargeFilesOptions) error {
	env, err := loadEnvironment(true)
	if err != nil {
		return err
	}
	defer env.Close()

	plan, err := env.newAdmin(&admin.AdminOption{}).RepairLargeFiles(ctx, o.dryRun)
	for _, restore := range plan {
		fmt.Fprintf(out, "%d/%s: %s:%s (%s) <- %s:%s\n",
			restore.VolumeId, restore.Collection,
			restore.Target.Host, restore.Target.Dir, humanize.IBytes(restore.Target.Size),
			restore.ReplicaHost, restore.ReplicaDir)
	}
	return err
}
