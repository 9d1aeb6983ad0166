package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/remote"
)

// FixVolumeOnServer rebuilds the index of one volume with weed fix.
func (a *Admin) FixVolumeOnServer(ctx context.Context, server, dir string, vid uint32, collection string) error {
	shell, err := a.shellFor(server)
	if err != nil {
		return err
	}
	command := fmt.Sprintf("weed fix -dir %s -volumeId %d -collection %s", remote.Quote(dir), vid, remote.Quote(collection))
	if output, err := remote.Run(ctx, shell, command); err != nil {
		return fmt.Errorf("fix volume %s/%d on %s: %s: %w", collection, vid, server, strings.Join(output, ","), err)
	}
	return nil
}

// FixVolumesOnServer runs weed fix on every volume of a collection on the server.
// Failing volumes are logged and skipped.
func (a *Admin) FixVolumesOnServer(ctx context.Context, server string) (fixed int, err error) {
	glog.Infof("Fix volumes on server %s", server)
	volumes, err := a.VolumesOnServer(ctx, server)
	if err != nil {
		return 0, err
	}
	for _, volume := range volumes {
		if volume.Collection == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		dir, err := a.FindVolumeOnServer(ctx, server, volume.Id, volume.Collection)
		if err != nil {
			glog.Errorf("%v", err)
			continue
		}
		glog.Infof("Fix volume %s:%s:%d:%s", server, dir, volume.Id, volume.Collection)
		if err := a.FixVolumeOnServer(ctx, server, dir, volume.Id, volume.Collection); err != nil {
			glog.Errorf("%v", err)
			continue
		}
		fixed++
	}
	return fixed, nil
}

func (a *Admin) FixVolumes(ctx context.Context) error {
	servers, err := a.VolumeServers(ctx)
	if err != nil {
		return err
	}
	for _, server := range servers {
		if _, err := a.FixVolumesOnServer(ctx, server); err != nil {
			glog.Errorf("fix volumes on %s: %v", server, err)
		}
	}
	return nil
}
