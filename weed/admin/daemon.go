package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/remote"
)

var ErrNotAlive = errors.New("volume server not alive")

const supervisorProgram = "weed_volume"

// IsVolumeServerAlive is true when the server answers /status with at least one volume.
func (a *Admin) IsVolumeServerAlive(ctx context.Context, server string) bool {
	status, err := a.option.VolumeServer.Status(ctx, server)
	if err != nil {
		return false
	}
	return len(status.Volumes) > 0
}

func (a *Admin) supervisor(ctx context.Context, server, action string) error {
	shell, err := a.shellFor(server)
	if err != nil {
		return err
	}
	_, err = remote.Run(ctx, shell, "supervisorctl "+action+" "+supervisorProgram)
	return err
}

// WaitForVolumeServer polls until the server is alive again or ctx is done.
func (a *Admin) WaitForVolumeServer(ctx context.Context, server string) error {
	start := time.Now()
	b := backoff.WithContext(backoff.NewConstantBackOff(a.option.AlivePollInterval), ctx)
	return backoff.Retry(func() error {
		if a.IsVolumeServerAlive(ctx, server) {
			return nil
		}
		glog.V(1).Infof("Wait for %s to come back online. %.0fs", server, time.Since(start).Seconds())
		return ErrNotAlive
	}, b)
}

func (a *Admin) RestartVolumeServer(ctx context.Context, server string) error {
	if !a.IsVolumeServerAlive(ctx, server) {
		return fmt.Errorf("%w: %s, cannot restart", ErrNotAlive, server)
	}
	glog.Infof("Restart volume server on %s", server)
	if err := a.supervisor(ctx, server, "restart"); err != nil {
		return err
	}
	return a.WaitForVolumeServer(ctx, server)
}

// RestartVolumeServersRolling restarts one volume server after the other,
// waiting for each to come back before touching the next.
func (a *Admin) RestartVolumeServersRolling(ctx context.Context) error {
	servers, err := a.VolumeServers(ctx)
	if err != nil {
		return err
	}
	for _, server := range servers {
		if err := a.RestartVolumeServer(ctx, server); err != nil {
			return err
		}
	}
	return nil
}

func (a *Admin) StopVolumeServer(ctx context.Context, server string) error {
	if !a.IsVolumeServerAlive(ctx, server) {
		return fmt.Errorf("%w: %s, cannot stop", ErrNotAlive, server)
	}
	glog.Infof("Stop volume server on %s", server)
	return a.supervisor(ctx, server, "stop")
}

func (a *Admin) StartVolumeServer(ctx context.Context, server string) error {
	glog.Infof("Start volume server on %s", server)
	if err := a.supervisor(ctx, server, "start"); err != nil {
		return err
	}
	return a.WaitForVolumeServer(ctx, server)
}
