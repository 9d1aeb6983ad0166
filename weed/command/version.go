package command

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/brstgt/seaweed-admin/weed/util"
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print weed-admin version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "version %s %s %s\n", util.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
