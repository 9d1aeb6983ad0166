package command

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/brstgt/seaweed-admin/weed/admin"
)

type RepairOptions struct {
	workers    int
	days       int
	full       bool
	volumeId   uint32
	collection string
}

func repairCommand() *cobra.Command {
	o := &RepairOptions{}
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "copy files missing on a replica from the other replicas",
		Long: `Repair makes every replica of a volume hold every file any replica holds.

  Without -v all volumes of the cluster are repaired, spread over -w workers.
  Repairs are incremental by default: only files written after the last
  successful repair of the volume are compared. -f forces a full comparison.

  Examples:
    weed-admin repair -w 4 -d 7
    weed-admin repair -v 231 -c pictures -f`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("volume") && !cmd.Flags().Changed("collection") {
				return fmt.Errorf("-c collection is required with -v")
			}
			return runRepair(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().IntVarP(&o.workers, "workers", "w", 1, "parallel workers")
	cmd.Flags().IntVarP(&o.days, "days", "d", 0, "skip volumes repaired within this many days")
	cmd.Flags().BoolVarP(&o.full, "full", "f", false, "compare all files instead of the ones written since the last repair")
	cmd.Flags().Uint32VarP(&o.volumeId, "volume", "v", 0, "repair only this volume id")
	cmd.Flags().StringVarP(&o.collection, "collection", "c", "", "collection of the volume given with -v")
	return cmd
}

func runRepair(ctx context.Context, out io.Writer, o *RepairOptions) error {
	env, err := loadEnvironment(true)
	if err != nil {
		return err
	}
	defer env.Close()
	a := env.newAdmin(&admin.AdminOption{Workers: o.workers})

	if o.volumeId != 0 {
		report, err := a.RepairVolume(ctx, o.volumeId, o.collection, !o.full)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "volume %d/%s: %d missing, %d synced, %d not found, %d failed\n",
			report.VolumeId, report.Collection, report.MissingTotal(), report.Synced, report.NotFound, report.Failed)
		return nil
	}

	results, err := a.RepairVolumes(ctx, o.days, !o.full)
	printWorkerResults(out, results)
	return err
}

func printWorkerResults(out io.Writer, results []admin.WorkerResult) {
	for _, result := range results {
		fmt.Fprintf(out, "worker %d: %d done, %d skipped, %d failed", result.Worker, result.Done, result.Skipped, result.Failed)
		if result.Err != nil {
			fmt.Fprintf(out, ", stopped: %v", result.Err)
		}
		fmt.Fprintln(out)
	}
}
