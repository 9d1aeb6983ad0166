package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/brstgt/seaweed-admin/weed/admin"
)

type CompactOptions struct {
	server    string
	volumeIds string
	all       bool
	maxAge    int
	dryRun    bool
	workers   int
	backup    bool
}

func compactCommand() *cobra.Command {
	o := &CompactOptions{}
	cmd := &cobra.Command{
		Use:   "compact -s server",
		Short: "compact volumes on one volume server",
		Long: `Compact removes deleted files from the volumes of one volume server.

  Each volume is locked cluster wide, unmounted, compacted with weed compact,
  swapped in place and mounted again. Volumes locked by another run are
  retried after the rest of the queue.

  Without -v or -a only volumes larger than 32GiB are compacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVarP(&o.server, "server", "s", "", "volume server host")
	cmd.Flags().StringVarP(&o.volumeIds, "volume", "v", "", "comma separated volume ids")
	cmd.Flags().BoolVarP(&o.all, "all", "a", false, "compact all volumes")
	cmd.Flags().IntVarP(&o.maxAge, "max-age", "m", 0, "with -a, skip volumes compacted within this many days")
	cmd.Flags().BoolVarP(&o.dryRun, "dry-run", "n", false, "only log what would be compacted")
	cmd.Flags().IntVarP(&o.workers, "workers", "w", 1, "parallel workers")
	cmd.Flags().BoolVar(&o.backup, "backup", false, "keep the old files as .bak")
	cmd.MarkFlagRequired("server")
	return cmd
}

func runCompact(ctx context.Context, out io.Writer, o *CompactOptions) error {
	env, err := loadEnvironment(true)
	if err != nil {
		return err
	}
	defer env.Close()
	a := env.newAdmin(&admin.AdminOption{
		Workers:      o.workers,
		DryRun:       o.dryRun,
		CreateBackup: o.backup,
	})
	host := admin.HostName(o.server)

	var results []admin.WorkerResult
	switch {
	case o.volumeIds != "":
		results, err = a.CompactSingleVolume(ctx, host, o.volumeIds)
	case o.all:
		var lastCompactionBefore *time.Time
		if o.maxAge > 0 {
			before := time.Now().AddDate(0, 0, -o.maxAge)
			lastCompactionBefore = &before
		}
		results, err = a.CompactAll(ctx, host, lastCompactionBefore)
	default:
		results, err = a.CompactLargeFiles(ctx, host)
	}
	printWorkerResults(out, results)
	if err != nil {
		return fmt.Errorf("compact %s: %w", host, err)
	}
	return nil
}
