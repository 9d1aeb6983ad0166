package command

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/brstgt/seaweed-admin/weed/admin"
)

type FixOptions struct {
	server string
	all    bool
}

func fixCommand() *cobra.Command {
	o := &FixOptions{}
	cmd := &cobra.Command{
		Use:   "fix -s server",
		Short: "re-create the index files of all volumes on a volume server",
		Long: `Fix runs weed fix for every volume of a collection on the volume server,
rebuilding the .idx file from the .dat file. Failing volumes are logged and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.server == "" && !o.all {
				return fmt.Errorf("either -s server or -a is required")
			}
			return runFix(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVarP(&o.server, "server", "s", "", "volume server, host or host:port")
	cmd.Flags().BoolVarP(&o.all, "all", "a", false, "fix volumes on every volume server")
	return cmd
}

func runFix(ctx context.Context, out io.Writer, o *FixOptions) error {
	env, err := loadEnvironment(true)
	if err != nil {
		return err
	}
	defer env.Close()
	a := env.newAdmin(&admin.AdminOption{})

	if o.all {
		return a.FixVolumes(ctx)
	}
	server := serverAddress(a, o.server)
	fixed, err := a.FixVolumesOnServer(ctx, server)
	fmt.Fprintf(out, "%d volumes fixed on %s\n", fixed, server)
	return err
}
