package command

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/brstgt/seaweed-admin/weed/admin"
)

type CompareOptions struct {
	repairThreshold float64
	skipCollections []string
}

func compareCommand() *cobra.Command {
	o := &CompareOptions{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "compare replica and file counts of all volumes",
		Long: `Compare checks every volume of the cluster:

  - volume ids used by more than one collection
  - replica counts that differ from the configured replication,
    empty volumes with a wrong replica count are deleted
  - file counts that differ between replicas

  With -r, volumes whose file counts differ more than the given percentage
  get an incremental repair right away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().Float64VarP(&o.repairThreshold, "repair", "r", -1, "repair volumes whose file counts differ more than this many percent, negative only reports")
	cmd.Flags().StringSliceVar(&o.skipCollections, "skip", nil, `collections to leave alone (default "" and unittest)`)
	return cmd
}

func runCompare(ctx context.Context, out io.Writer, o *CompareOptions) error {
	env, err := loadEnvironment(true)
	if err != nil {
		return err
	}
	defer env.Close()

	report, err := env.newAdmin(&admin.AdminOption{}).CompareVolumes(ctx, o.repairThreshold, o.skipCollections)
	if report != nil {
		printCompareReport(out, report)
	}
	return err
}

func printCompareReport(out io.Writer, report *admin.CompareReport) {
	fmt.Fprintf(out, "collisions:    %d %v\n", len(report.Collisions), report.Collisions)
	fmt.Fprintf(out, "mismatched:    %d %v\n", len(report.Mismatched), report.Mismatched)
	fmt.Fprintf(out, "deleted:       %d %v\n", len(report.Deleted), report.Deleted)
	fmt.Fprintf(out, "diverged:      %d %v\n", len(report.Diverged), report.Diverged)
	fmt.Fprintf(out, "repaired:      %d %v\n", len(report.Repaired), report.Repaired)
	fmt.Fprintf(out, "repair failed: %d %v\n", len(report.RepairFailed), report.RepairFailed)
}
