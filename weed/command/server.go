package command

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brstgt/seaweed-admin/weed/deletequeue"
	"github.com/brstgt/seaweed-admin/weed/stats"
)

type ServerOptions struct {
	interval    time.Duration
	limit       int
	metricsIp   string
	metricsPort int
}

func serverCommand() *cobra.Command {
	o := &ServerOptions{}
	cmd := &cobra.Command{
		Use:   "server",
		Short: "process the delete queue continuously and export metrics",
		Long: `Server keeps retrying queued deletes until it is stopped.

  Metrics are served on -metricsPort under /metrics, and pushed to the
  gateway configured as metrics.address in admin.toml every
  metrics.interval_seconds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), o)
		},
	}
	cmd.Flags().DurationVar(&o.interval, "interval", 10*time.Second, "pause between delete queue batches")
	cmd.Flags().IntVarP(&o.limit, "limit", "l", deletequeue.DefaultPopLimit, "deletes per batch")
	cmd.Flags().StringVar(&o.metricsIp, "metricsIp", "", "metrics listen ip")
	cmd.Flags().IntVar(&o.metricsPort, "metricsPort", 0, "prometheus metrics listen port, 0 disables it")
	return cmd
}

func runServer(ctx context.Context, o *ServerOptions) error {
	env, err := loadEnvironment(false)
	if err != nil {
		return err
	}
	defer env.Close()

	glog.V(0).Infof("start delete queue processing every %v, run %s", o.interval, runId)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stats.StartMetricsServer(ctx, o.metricsIp, o.metricsPort)
	})
	g.Go(func() error {
		stats.LoopPushingMetric(ctx, "weed-admin", stats.SourceName(),
			env.configuration.GetString("metrics.address"), env.configuration.GetInt("metrics.interval_seconds"))
		return nil
	})
	g.Go(func() error {
		return processDeleteQueue(ctx, env, o.interval, o.limit)
	})
	return g.Wait()
}
