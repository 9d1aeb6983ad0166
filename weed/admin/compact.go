package admin

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/remote"
	"github.com/brstgt/seaweed-admin/weed/stats"
	"github.com/brstgt/seaweed-admin/weed/util"
)

var (
	ErrOutOfMemory = errors.New("out of memory")
	ErrDiskFull    = errors.New("no space left on device")

	outOfMemoryPattern = regexp.MustCompile(`(?i)out of memory`)
	diskFullPattern    = regexp.MustCompile(`(?i)no space left`)
)

type CompactState int

const (
	StatePending CompactState = iota
	StateLockWait
	StateCompacting
	StateSwapping
	StateDone
	StateSkippedOOM
	StateFatalDiskFull
	StateFailed
)

func (s CompactState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLockWait:
		return "lock_wait"
	case StateCompacting:
		return "compacting"
	case StateSwapping:
		return "swapping"
	case StateDone:
		return "done"
	case StateSkippedOOM:
		return "skipped_oom"
	case StateFatalDiskFull:
		return "fatal_disk_full"
	}
	return "failed"
}

// ClassifyCompactOutput looks for the first line reporting memory or disk exhaustion.
func ClassifyCompactOutput(lines []string) error {
	for _, line := range lines {
		if outOfMemoryPattern.MatchString(line) {
			return ErrOutOfMemory
		}
		if diskFullPattern.MatchString(line) {
			return ErrDiskFull
		}
	}
	return nil
}

// WithCompactionLock runs fn while holding the compaction lock of the volume.
// The lock is released on every return path. acquired is false, without error,
// when somebody else holds the lock.
func (a *Admin) WithCompactionLock(ctx context.Context, vid uint32, collection, owner string, fn func() error) (acquired bool, err error) {
	acquired, err = a.option.Store.TryLock(ctx, vid, collection, owner, a.now())
	if err != nil || !acquired {
		return acquired, err
	}
	defer func() {
		// release even when ctx is already cancelled
		if unlockErr := a.option.Store.Unlock(context.WithoutCancel(ctx), vid, collection); unlockErr != nil {
			glog.Errorf("unlock %s/%d: %v", collection, vid, unlockErr)
			err = errors.Join(err, unlockErr)
		}
	}()
	return true, fn()
}

func compactCommand(dir string, vid uint32, collection string) string {
	command := fmt.Sprintf("weed compact -dir %s -volumeId %d", remote.Quote(dir), vid)
	if collection != "" {
		command += " -collection " + remote.Quote(collection)
	}
	return command + " 2>&1"
}

func move(ctx context.Context, shell remote.Shell, from, to string) error {
	_, err := remote.Run(ctx, shell, "mv "+remote.Quote(from)+" "+remote.Quote(to))
	return err
}

// compactVolume runs one volume through lock, unmount, compact, swap, mount.
func (a *Admin) compactVolume(ctx context.Context, host string, shell remote.Shell, volume *VolumeFile, taskInfo string) (state CompactState, err error) {
	state = StatePending
	vid, collection := volume.VolumeId, volume.Collection
	address := a.ServerAddress(host)

	acquired, err := a.WithCompactionLock(ctx, vid, collection, host, func() (fnErr error) {
		if a.option.DryRun {
			glog.Infof("%sStart compaction in %s (Size: %s), dry run", taskInfo, volume.Dir, util.BytesToHumanReadable(volume.Size))
			state = StateDone
			return nil
		}

		glog.V(1).Infof("%sUnmount", taskInfo)
		if err := a.option.VolumeServer.Unmount(ctx, address, vid); err != nil {
			state = StateFailed
			return fmt.Errorf("unmount: %w", err)
		}
		defer func() {
			glog.V(1).Infof("%sMount", taskInfo)
			if err := a.option.VolumeServer.Mount(context.WithoutCancel(ctx), address, vid); err != nil {
				fnErr = errors.Join(fnErr, fmt.Errorf("mount: %w", err))
				if state == StateDone || state == StateSkippedOOM {
					state = StateFailed
				}
			}
		}()

		state = StateCompacting
		glog.Infof("%sStart compaction in %s (Size: %s)", taskInfo, volume.Dir, util.BytesToHumanReadable(volume.Size))
		result, err := shell.Execute(ctx, compactCommand(volume.Dir, vid, collection))
		if err != nil {
			state = StateFailed
			return err
		}
		output := append(append([]string{}, result.Output...), strings.Split(result.Stderr, "\n")...)
		switch classified := ClassifyCompactOutput(output); {
		case errors.Is(classified, ErrOutOfMemory):
			glog.Errorf("%sOut of memory skip", taskInfo)
			state = StateSkippedOOM
			return nil
		case errors.Is(classified, ErrDiskFull):
			glog.Errorf("%sDevice full", taskInfo)
			state = StateFatalDiskFull
			return fmt.Errorf("%s on %s: %w", volume.Dir, host, ErrDiskFull)
		}
		if result.ExitCode != 0 {
			state = StateFailed
			return &remote.CommandError{Host: host, Command: compactCommand(volume.Dir, vid, collection), ExitCode: result.ExitCode, Output: result.Output, Stderr: result.Stderr}
		}

		state = StateSwapping
		glog.V(1).Infof("%sMove compacted data files", taskInfo)
		dataFile := VolumePath(volume.Dir, vid, collection, "dat")
		indexFile := VolumePath(volume.Dir, vid, collection, "idx")
		if a.option.CreateBackup {
			if err := move(ctx, shell, dataFile, dataFile+".bak"); err != nil {
				state = StateFailed
				return err
			}
			if err := move(ctx, shell, indexFile, indexFile+".bak"); err != nil {
				state = StateFailed
				return err
			}
		}
		// data first, then index; the pair is inconsistent if we die in between
		if err := move(ctx, shell, VolumePath(volume.Dir, vid, collection, "cpd"), dataFile); err != nil {
			state = StateFailed
			return err
		}
		if err := move(ctx, shell, VolumePath(volume.Dir, vid, collection, "cpx"), indexFile); err != nil {
			state = StateFailed
			return err
		}

		if err := a.option.Store.SetCompactedAt(ctx, host, vid, collection, a.now()); err != nil {
			glog.Errorf("%swrite compaction watermark: %v", taskInfo, err)
		}
		state = StateDone
		return nil
	})
	if !acquired && err == nil {
		return StateLockWait, nil
	}
	if err != nil && state != StateFatalDiskFull {
		state = StateFailed
	}
	return state, err
}

// CompactList compacts volumes on one volume server host, split over the configured workers.
// It returns ErrDiskFull when a worker had to stop because a disk ran full.
func (a *Admin) CompactList(ctx context.Context, host string, volumes []*VolumeFile) ([]WorkerResult, error) {
	if len(volumes) == 0 {
		glog.Infof("Nothing to compact")
		return nil, nil
	}
	workers := a.option.Workers
	if workers <= 1 {
		workers = 1
	}
	shards := ShardBySize(volumes, workers, func(v *VolumeFile) uint64 { return v.Size })
	results := runWorkers(ctx, a, shards, func(ctx context.Context, w *Admin, worker int, jobs []*VolumeFile) WorkerResult {
		return w.processCompactQueue(ctx, host, worker, jobs)
	})

	var errs []error
	for _, result := range results {
		if result.Err != nil {
			errs = append(errs, fmt.Errorf("worker %d: %w", result.Worker, result.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (a *Admin) processCompactQueue(ctx context.Context, host string, worker int, volumes []*VolumeFile) WorkerResult {
	result := WorkerResult{Worker: worker}
	workerInfo := ""
	if worker > 0 {
		workerInfo = fmt.Sprintf("Q %d: ", worker)
	}
	shell, err := a.shells.ForHost(host)
	if err != nil {
		result.Err = err
		return result
	}

	total := len(volumes)
	var totalSize, processedSize uint64
	for _, volume := range volumes {
		totalSize += volume.Size
	}
	progress := stats.CompactionProgressGauge.WithLabelValues(host, strconv.Itoa(worker))

	i := 0
	percent := 0.0
	for {
		var deferred []*VolumeFile
		for _, volume := range volumes {
			if err := ctx.Err(); err != nil {
				result.Err = err
				return result
			}
			taskInfo := fmt.Sprintf("(%s%d/%d, %3.2f%%, %d/%s) ", workerInfo, i, total, percent, volume.VolumeId, volume.Collection)

			state, err := a.compactVolume(ctx, host, shell, volume, taskInfo)
			if state == StateLockWait {
				glog.Infof("%sCould not lock - defer", taskInfo)
				deferred = append(deferred, volume)
				continue
			}
			i++
			stats.CompactionCounter.WithLabelValues(host, state.String()).Inc()

			switch state {
			case StateDone:
				result.Done++
			case StateSkippedOOM:
				result.Skipped++
			case StateFatalDiskFull:
				result.Err = err
				return result
			default:
				glog.Errorf("%scompaction failed: %v", taskInfo, err)
				result.Failed++
			}

			processedSize += volume.Size
			stats.CompactionBytesCounter.WithLabelValues(host).Add(float64(volume.Size))
			percent = util.Percent(processedSize, totalSize)
			progress.Set(percent)
			glog.Infof("%sFinished %d/%s, %0.2f%% completed", taskInfo, volume.VolumeId, volume.Collection, percent)
		}

		if len(deferred) == 0 {
			return result
		}
		volumes = deferred
		glog.Infof("%s%d locked volumes, retry in %v", workerInfo, len(deferred), a.option.LockRetryWait)
		if err := util.WaitFor(ctx, a.option.LockRetryWait); err != nil {
			result.Err = err
			return result
		}
	}
}

func (a *Admin) volumesWithFilesOn(ctx context.Context, host string) ([]*VolumeFile, error) {
	files, err := a.FindPhysicalVolumeFiles(ctx, host, "")
	if err != nil {
		return nil, err
	}
	return volumesWithFiles(files), nil
}

// CompactSingleVolume compacts the comma separated volume ids on host.
func (a *Admin) CompactSingleVolume(ctx context.Context, host string, volumeIds string) ([]WorkerResult, error) {
	glog.Infof("Compacting volume %s on %s", volumeIds, host)
	wanted := make(map[uint32]bool)
	for _, part := range strings.Split(volumeIds, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		vid, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("volume id %q: %w", part, err)
		}
		wanted[uint32(vid)] = true
	}
	volumes, err := a.volumesWithFilesOn(ctx, host)
	if err != nil {
		return nil, err
	}
	var selected []*VolumeFile
	for _, volume := range volumes {
		if wanted[volume.VolumeId] {
			selected = append(selected, volume)
		}
	}
	return a.CompactList(ctx, host, selected)
}

// CompactLargeFiles compacts the volumes whose .dat file outgrew MaxVolumeFileSize.
func (a *Admin) CompactLargeFiles(ctx context.Context, host string) ([]WorkerResult, error) {
	glog.Infof("Compacting too large files on %s", host)
	volumes, err := a.volumesWithFilesOn(ctx, host)
	if err != nil {
		return nil, err
	}
	var selected []*VolumeFile
	for _, volume := range volumes {
		if volume.Size > MaxVolumeFileSize {
			selected = append(selected, volume)
		}
	}
	return a.CompactList(ctx, host, selected)
}

// CompactAll compacts every volume on host. With lastCompactionBefore set, volumes
// compacted after it are skipped.
func (a *Admin) CompactAll(ctx context.Context, host string, lastCompactionBefore *time.Time) ([]WorkerResult, error) {
	if lastCompactionBefore != nil {
		glog.Infof("Compacting all files on %s with compaction before %s", host, lastCompactionBefore.Format(time.RFC3339))
	} else {
		glog.Infof("Compacting all files on %s", host)
	}
	volumes, err := a.volumesWithFilesOn(ctx, host)
	if err != nil {
		return nil, err
	}
	if lastCompactionBefore == nil {
		return a.CompactList(ctx, host, volumes)
	}

	var selected []*VolumeFile
	for _, volume := range volumes {
		compactedAt, found, err := a.option.Store.GetCompactedAt(ctx, host, volume.VolumeId, volume.Collection)
		if err != nil {
			return nil, err
		}
		if !found || compactedAt.Before(*lastCompactionBefore) {
			selected = append(selected, volume)
			continue
		}
		glog.Infof("Skip %d/%s, last compaction was %s", volume.VolumeId, volume.Collection, compactedAt.Format(time.RFC3339))
	}
	return a.CompactList(ctx, host, selected)
}
