package admin

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/util"
)

// VolumeInfo describes every replica of a volume id, one line per replica.
func (a *Admin) VolumeInfo(ctx context.Context, vid uint32) ([]string, error) {
	distribution, err := a.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if _, found := distribution[vid]; !found {
		return nil, fmt.Errorf("%w: volume %d", ErrVolumeNotFound, vid)
	}
	var lines []string
	for _, collection := range distribution.Collections(vid) {
		for _, replica := range distribution[vid][collection] {
			volume := replica.Volume
			line := fmt.Sprintf("Found on %s collection=%s garbage=%.0f%% liveSize=%s liveFiles=%d",
				replica.Server, volume.Collection, volume.GarbageRatio()*100,
				util.BytesToHumanReadable(volume.LiveSize()), volume.LiveFileCount())
			glog.Info(line)
			lines = append(lines, line)
		}
	}
	return lines, nil
}
