package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/stats"
)

const (
	diffErrorPercent   = 10
	diffWarningPercent = 3
	diffDebugPercent   = 1
)

type VolumeKey struct {
	VolumeId   uint32
	Collection string
}

func (k VolumeKey) String() string {
	return fmt.Sprintf("%d/%s", k.VolumeId, k.Collection)
}

type CompareReport struct {
	Collisions []uint32
	// Mismatched volumes have a different number of replicas than configured.
	Mismatched []VolumeKey
	// Deleted volumes were mismatched and had no files left on any replica.
	Deleted  []VolumeKey
	Diverged []VolumeKey
	Repaired []VolumeKey
	// RepairFailed volumes were picked for a repair that did not complete.
	RepairFailed []VolumeKey
}

// DiffPercent is the relative difference of two live file counts, based on the first one.
// An empty first replica against a non empty second counts as 100%.
func DiffPercent(base, other int64) float64 {
	diff := base - other
	if diff < 0 {
		diff = -diff
	}
	if base <= 0 {
		if diff == 0 {
			return 0
		}
		return 100
	}
	return float64(diff) / float64(base) * 100
}

// CompareVolumes checks every volume of the cluster for replica count and file
// count drift. Volumes drifting more than repairThreshold percent are repaired
// right away. A negative threshold only reports replica count problems.
func (a *Admin) CompareVolumes(ctx context.Context, repairThreshold float64, skipCollections []string) (*CompareReport, error) {
	glog.V(1).Infof("compare volumes, repair threshold %.2f%%", repairThreshold)
	distribution, err := a.Discover(ctx)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool)
	if skipCollections == nil {
		skipCollections = a.option.SkipCollections
	}
	for _, collection := range skipCollections {
		skip[collection] = true
	}

	report := &CompareReport{}
	for _, vid := range distribution.VolumeIds() {
		if len(distribution[vid]) > 1 {
			logCollision(distribution, vid)
			report.Collisions = append(report.Collisions, vid)
		}

		for _, collection := range distribution.Collections(vid) {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			if skip[collection] {
				continue
			}
			a.compareVolume(ctx, VolumeKey{vid, collection}, distribution[vid][collection], repairThreshold, report)
		}
	}
	return report, nil
}

func (a *Admin) compareVolume(ctx context.Context, key VolumeKey, replicas []*Replica, repairThreshold float64, report *CompareReport) {
	expected, err := a.option.Collections.ReplicaCountOf(key.Collection)
	if errors.Is(err, ErrUndefinedCollection) {
		// unconfigured collections are not checked
		return
	}
	if err != nil {
		glog.Errorf("Volume %s: %v", key, err)
		return
	}

	if len(replicas) != expected {
		var servers []string
		var totalLiveFileCount int64
		for _, replica := range replicas {
			totalLiveFileCount += replica.Volume.LiveFileCount()
			servers = append(servers, fmt.Sprintf("%s, %d Files", replica.Server, replica.Volume.FileCount))
		}
		glog.Errorf("Volume %s expected replication count %d, got %d on %s", key, expected, len(replicas), strings.Join(servers, ", "))
		report.Mismatched = append(report.Mismatched, key)
		stats.CompareVolumeCounter.WithLabelValues(key.Collection, "mismatch").Inc()

		// empty volumes, or volumes whose files were all deleted
		if totalLiveFileCount == 0 {
			for _, replica := range replicas {
				a.DeleteVolume(ctx, replica.Server, key.VolumeId, key.Collection)
			}
			report.Deleted = append(report.Deleted, key)
			stats.CompareVolumeCounter.WithLabelValues(key.Collection, "deleted").Inc()
			return
		}
	}

	if repairThreshold < 0 || len(replicas) < 2 {
		return
	}
	first := replicas[0].Volume
	for _, replica := range replicas[1:] {
		volume := replica.Volume
		if first.FileCount == volume.FileCount {
			continue
		}
		diffPercent := DiffPercent(first.LiveFileCount(), volume.LiveFileCount())
		message := fmt.Sprintf("File count on %s differs %0.2f%%. %s: %d <> %s: %d",
			key, diffPercent, replicas[0].Server, first.FileCount, replica.Server, volume.FileCount)
		switch {
		case diffPercent > diffErrorPercent:
			glog.Error(message)
		case diffPercent > diffWarningPercent:
			glog.Warning(message)
		case diffPercent > diffDebugPercent:
			glog.V(1).Info(message)
		}

		if diffPercent > repairThreshold {
			report.Diverged = append(report.Diverged, key)
			stats.CompareVolumeCounter.WithLabelValues(key.Collection, "diverged").Inc()
			glog.Infof("Start repair on volume %s", key)
			servers := make([]string, 0, len(replicas))
			for _, r := range replicas {
				servers = append(servers, r.Server)
			}
			// one repair covers all replicas
			if _, err := a.repairVolume(ctx, key.VolumeId, key.Collection, true, servers, logPrefix(key.VolumeId, key.Collection)); err != nil {
				glog.Errorf("repair %s: %v", key, err)
				report.RepairFailed = append(report.RepairFailed, key)
			} else {
				report.Repaired = append(report.Repaired, key)
			}
			return
		}
	}
}
