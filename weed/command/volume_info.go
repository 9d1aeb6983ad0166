package command

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/brstgt/seaweed-admin/weed/admin"
)

func volumeInfoCommand() *cobra.Command {
	var volumeId uint32
	cmd := &cobra.Command{
		Use:   "volume-info -v volumeId",
		Short: "show collection, garbage and live size of every replica of a volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVolumeInfo(cmd.Context(), cmd.OutOrStdout(), volumeId)
		},
	}
	cmd.Flags().Uint32VarP(&volumeId, "volume", "v", 0, "volume id")
	cmd.MarkFlagRequired("volume")
	return cmd
}

func runVolumeInfo(ctx context.Context, out io.Writer, volumeId uint32) error {
	env, err := loadEnvironment(false)
	if err != nil {
		return err
	}
	defer env.Close()

	lines, err := env.newAdmin(&admin.AdminOption{}).VolumeInfo(ctx, volumeId)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}
