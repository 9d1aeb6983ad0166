package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/operation"
	"github.com/brstgt/seaweed-admin/weed/stats"
)

const repairProgressEvery = 1000

type SyncResult int

const (
	SyncOk SyncResult = iota
	SyncNotFound
	SyncFailed
)

func (r SyncResult) String() string {
	switch r {
	case SyncOk:
		return "synced"
	case SyncNotFound:
		return "not_found"
	}
	return "failed"
}

// MissingFile is a file absent on one replica and the replica to copy it from.
type MissingFile struct {
	File   FileRecord
	Source string
}

type RepairReport struct {
	VolumeId    uint32
	Collection  string
	StartedAt   time.Time
	Incremental bool
	// Missing counts files missing per target server.
	Missing  map[string]int
	Synced   int
	NotFound int
	Failed   int
}

func (r *RepairReport) MissingTotal() int {
	total := 0
	for _, n := range r.Missing {
		total += n
	}
	return total
}

// ComputeMissing compares every replica with every other one. A file missing
// on a server from several sources keeps the last source in server order.
func ComputeMissing(servers []string, files map[string]map[string]FileRecord) map[string]map[string]MissingFile {
	missing := make(map[string]map[string]MissingFile, len(servers))
	for repairIndex, repairServer := range servers {
		missing[repairServer] = make(map[string]MissingFile)
		for compareIndex, compareServer := range servers {
			if compareIndex == repairIndex {
				continue
			}
			for fid, record := range files[compareServer] {
				if _, found := files[repairServer][fid]; !found {
					missing[repairServer][fid] = MissingFile{File: record, Source: compareServer}
				}
			}
		}
	}
	return missing
}

// RepairVolume makes every replica of the volume hold every file any replica holds.
// Incremental repairs only look at files newer than the last successful repair.
func (a *Admin) RepairVolume(ctx context.Context, vid uint32, collection string, incremental bool) (*RepairReport, error) {
	servers, err := a.ServersForVolume(ctx, vid, collection)
	if err != nil {
		return nil, err
	}
	return a.repairVolume(ctx, vid, collection, incremental, servers, logPrefix(vid, collection))
}

func (a *Admin) repairVolume(ctx context.Context, vid uint32, collection string, incremental bool, servers []string, prefix string) (*RepairReport, error) {
	var newerThan time.Time
	if incremental {
		repairedAt, found, err := a.option.Store.GetRepairedAt(ctx, vid, collection)
		if err != nil {
			return nil, fmt.Errorf("%sread repair watermark: %w", prefix, err)
		}
		if found {
			newerThan = repairedAt
			glog.Infof("%sRun incremental repair, last repair: %s", prefix, repairedAt.Format(time.RFC3339))
		} else {
			glog.Infof("%sRun first repair", prefix)
		}
	} else {
		glog.Infof("%sRun full repair", prefix)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: %s/%d has no replicas", ErrVolumeNotFound, collection, vid)
	}

	repairStart := a.now()
	started := time.Now()
	report := &RepairReport{
		VolumeId:    vid,
		Collection:  collection,
		StartedAt:   repairStart,
		Incremental: !newerThan.IsZero(),
		Missing:     make(map[string]int),
	}

	files := make(map[string]map[string]FileRecord, len(servers))
	for _, server := range servers {
		glog.Infof("%sGet files on %s", prefix, server)
		dir, err := a.FindVolumeOnServer(ctx, server, vid, collection)
		if err != nil {
			return nil, err
		}
		all, err := a.ListVolumeFiles(ctx, server, dir, vid, collection, newerThan)
		if err != nil {
			return nil, err
		}
		// files written while this pass runs are left for the next one
		ignore, err := a.ListVolumeFiles(ctx, server, dir, vid, collection, repairStart)
		if err != nil {
			return nil, err
		}
		glog.V(1).Infof("%sIgnore %d files after %s on %s", prefix, len(ignore), repairStart.Format(time.RFC3339), server)
		for fid := range ignore {
			delete(all, fid)
		}
		files[server] = all
		glog.V(1).Infof("%sFound %d files on %s", prefix, len(all), server)
	}

	missing := ComputeMissing(servers, files)
	for _, server := range servers {
		if n := len(missing[server]); n > 0 {
			glog.Warningf("%s%d files missing on %s", prefix, n, server)
			report.Missing[server] = n
		}
	}

	a.syncMissingFiles(ctx, servers, missing, a.option.Collections.TtlOf(collection), collection, prefix, report)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	if err := a.option.Store.SetRepairedAt(ctx, vid, collection, repairStart); err != nil {
		return report, fmt.Errorf("%swrite repair watermark: %w", prefix, err)
	}

	repairType := "full"
	if report.Incremental {
		repairType = "incremental"
	}
	stats.RepairVolumeCounter.WithLabelValues(collection, repairType).Inc()
	stats.RepairVolumeHistogram.WithLabelValues(repairType).Observe(time.Since(started).Seconds())
	return report, nil
}

func (a *Admin) syncMissingFiles(ctx context.Context, servers []string, missing map[string]map[string]MissingFile, ttl, collection, prefix string, report *RepairReport) {
	for _, target := range servers {
		files := missing[target]
		if len(files) == 0 {
			continue
		}
		glog.Infof("%sRepair %d missing files on %s", prefix, len(files), target)

		fids := make([]string, 0, len(files))
		for fid := range files {
			fids = append(fids, fid)
		}
		sort.Strings(fids)

		for i, fid := range fids {
			if ctx.Err() != nil {
				return
			}
			result, err := a.syncFile(ctx, target, files[fid], ttl, prefix)
			switch result {
			case SyncOk:
				report.Synced++
			case SyncNotFound:
				glog.V(1).Infof("%s%v > probably deleted during sync", prefix, err)
				report.NotFound++
			default:
				glog.Errorf("%ssync %s from %s to %s: %v", prefix, fid, files[fid].Source, target, err)
				report.Failed++
			}
			stats.RepairFileCounter.WithLabelValues(collection, result.String()).Inc()
			if (i+1)%repairProgressEvery == 0 {
				glog.V(1).Infof("%s... %d repaired", prefix, i+1)
			}
		}
	}
}

// syncFile copies one file to target without letting the volume server replicate it again.
func (a *Admin) syncFile(ctx context.Context, target string, missing MissingFile, ttl, prefix string) (SyncResult, error) {
	fid := missing.File.FileId
	lastModified, err := a.option.VolumeServer.LastModified(ctx, missing.Source, fid)
	if err != nil {
		return classifySyncError(err)
	}
	data, err := a.option.VolumeServer.Retrieve(ctx, missing.Source, fid)
	if err != nil {
		return classifySyncError(err)
	}
	glog.V(2).Infof("%sSync fid %s from %s to %s, mime=%s, ttl=%s, last-modified=%s",
		prefix, fid, missing.Source, target, missing.File.Mime, ttl, lastModified.Format(time.RFC3339))
	err = a.option.VolumeServer.Store(ctx, target, fid, &operation.StoreRequest{
		FileName:     missing.File.Name,
		MimeType:     missing.File.Mime,
		Data:         data,
		Ttl:          ttl,
		NoReplicate:  true,
		LastModified: lastModified,
	})
	if err != nil {
		return SyncFailed, err
	}
	return SyncOk, nil
}

func classifySyncError(err error) (SyncResult, error) {
	if errors.Is(err, operation.ErrNotFound) {
		return SyncNotFound, err
	}
	return SyncFailed, err
}

type repairJob struct {
	vid         uint32
	collection  string
	incremental bool
	servers     []string
}

// RepairVolumes repairs every configured volume of the cluster, skipping volumes
// repaired within the last minDaysSinceLastRepair days.
func (a *Admin) RepairVolumes(ctx context.Context, minDaysSinceLastRepair int, incremental bool) ([]WorkerResult, error) {
	distribution, err := a.Discover(ctx)
	if err != nil {
		return nil, err
	}

	var lastRepairBefore time.Time
	if minDaysSinceLastRepair > 0 {
		lastRepairBefore = a.now().Add(-time.Duration(minDaysSinceLastRepair) * 24 * time.Hour)
		glog.Infof("Repair volumes with last repair before: %s", lastRepairBefore.Format(time.RFC3339))
	}

	var queue []repairJob
	var storeErr error
	distribution.Each(func(vid uint32, collection string, replicas []*Replica) {
		if storeErr != nil {
			return
		}
		if len(distribution[vid]) > 1 {
			if collection == distribution.Collections(vid)[0] {
				logCollision(distribution, vid)
			}
			return
		}
		if a.isSkipped(collection) {
			return
		}
		if minDaysSinceLastRepair > 0 {
			repairedAt, found, err := a.option.Store.GetRepairedAt(ctx, vid, collection)
			if err != nil {
				storeErr = err
				return
			}
			if found && repairedAt.After(lastRepairBefore) {
				glog.V(1).Infof("Skip volume %d/%s", vid, collection)
				return
			}
		}
		queue = append(queue, repairJob{
			vid:         vid,
			collection:  collection,
			incremental: incremental,
			servers:     distribution.Servers(vid, collection),
		})
	})
	if storeErr != nil {
		return nil, storeErr
	}

	workers := a.option.Workers
	if workers <= 1 {
		workers = 1
	}
	shards := ShardRoundRobin(queue, workers)
	if workers > 1 {
		for _, shard := range shards {
			shuffle(shard)
		}
	}
	return runWorkers(ctx, a, shards, processRepairQueue), nil
}

func processRepairQueue(ctx context.Context, w *Admin, worker int, jobs []repairJob) WorkerResult {
	result := WorkerResult{Worker: worker}
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			result.Err = err
			return result
		}
		prefix := logPrefix(job.vid, job.collection)
		if worker > 0 {
			prefix = fmt.Sprintf("(W %d: %d / %d, %d/%s) ", worker, i+1, len(jobs), job.vid, job.collection)
		}
		if _, err := w.repairVolume(ctx, job.vid, job.collection, job.incremental, job.servers, prefix); err != nil {
			glog.Errorf("%srepair failed: %v", prefix, err)
			result.Failed++
			continue
		}
		result.Done++
	}
	return result
}

func logCollision(distribution VolumeDistribution, vid uint32) {
	var desc []string
	for _, collection := range distribution.Collections(vid) {
		desc = append(desc, fmt.Sprintf("%s=%v", collection, distribution.Servers(vid, collection)))
	}
	glog.Errorf("Volume %d has more than 1 collection: %v", vid, desc)
}
