package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brstgt/seaweed-admin/weed/admin"
	"github.com/brstgt/seaweed-admin/weed/operation"
)

// serverAddress accepts a bare host, host:port or a full url.
func serverAddress(a *admin.Admin, server string) string {
	if admin.HostName(server) == server {
		return a.ServerAddress(server)
	}
	return operation.NormalizeUrl(server)
}

type VolumeServerOptions struct {
	server string
	all    bool
}

func volumeServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volume-server",
		Short: "start, stop or restart volume servers through supervisord",
	}
	cmd.AddCommand(
		volumeServerActionCommand("restart", "restart a volume server and wait until it serves its volumes again"),
		volumeServerActionCommand("stop", "stop a volume server"),
		volumeServerActionCommand("start", "start a volume server and wait until it serves its volumes"),
	)
	return cmd
}

func volumeServerActionCommand(action, short string) *cobra.Command {
	o := &VolumeServerOptions{}
	cmd := &cobra.Command{
		Use:   action + " -s server",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.server == "" && !o.all {
				return fmt.Errorf("either -s server or -a is required")
			}
			if o.all && action != "restart" {
				return fmt.Errorf("-a is only supported for restart")
			}
			return runVolumeServerAction(cmd.Context(), action, o)
		},
	}
	cmd.Flags().StringVarP(&o.server, "server", "s", "", "volume server, host or host:port")
	if action == "restart" {
		cmd.Flags().BoolVarP(&o.all, "all", "a", false, "restart all volume servers one after the other")
	}
	return cmd
}

func runVolumeServerAction(ctx context.Context, action string, o *VolumeServerOptions) error {
	env, err := loadEnvironment(true)
	if err != nil {
		return err
	}
	defer env.Close()
	a := env.newAdmin(&admin.AdminOption{})

	if o.all {
		return a.RestartVolumeServersRolling(ctx)
	}
	server := serverAddress(a, o.server)
	switch action {
	case "restart":
		return a.RestartVolumeServer(ctx, server)
	case "stop":
		return a.StopVolumeServer(ctx, server)
	}
	return a.StartVolumeServer(ctx, server)
}
