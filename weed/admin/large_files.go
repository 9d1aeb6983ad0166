package admin

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/remote"
	"github.com/brstgt/seaweed-admin/weed/util"
)

// LargeFileRestore replaces an oversized volume on Target with the copy of a healthy replica.
type LargeFileRestore struct {
	VolumeId    uint32
	Collection  string
	Target      *VolumeFile
	ReplicaHost string
	ReplicaDir  string
}

// FindLargeFiles lists the .dat files above MaxVolumeFileSize on every volume server.
func (a *Admin) FindLargeFiles(ctx context.Context) (map[uint32][]*VolumeFile, error) {
	servers, err := a.VolumeServers(ctx)
	if err != nil {
		return nil, err
	}
	large := make(map[uint32][]*VolumeFile)
	for _, server := range servers {
		files, err := a.FindPhysicalVolumeFiles(ctx, HostName(server), fmt.Sprintf("-size +%dG", MaxVolumeFileSize>>30))
		if err != nil {
			return nil, err
		}
		for vid, list := range files {
			for _, file := range list {
				file.Server = server
			}
			large[vid] = append(large[vid], list...)
		}
	}
	return large, nil
}

// PlanLargeFileRestores picks a healthy replica for every oversized volume file.
// Volumes without any healthy replica are logged and left alone.
func (a *Admin) PlanLargeFileRestores(ctx context.Context, large map[uint32][]*VolumeFile, distribution VolumeDistribution) ([]*LargeFileRestore, error) {
	vids := make([]uint32, 0, len(large))
	for vid := range large {
		vids = append(vids, vid)
	}
	sort.Slice(vids, func(i, j int) bool { return vids[i] < vids[j] })

	var plan []*LargeFileRestore
	for _, vid := range vids {
		places := large[vid]
		collection := places[0].Collection
		replicas := distribution[vid][collection]
		if len(places) >= len(replicas) {
			glog.Warningf("Volume %d/%s cannot be restored from replica", vid, collection)
			continue
		}
		glog.Infof("Volume %d/%s has %d too large files and %d replicas", vid, collection, len(places), len(replicas))

		broken := make(map[string]bool, len(places))
		for _, place := range places {
			broken[HostName(place.Server)] = true
		}
		var source string
		for _, replica := range replicas {
			if !broken[HostName(replica.Server)] {
				source = replica.Server
			}
		}
		if source == "" {
			glog.Warningf("Volume %d/%s has no healthy replica", vid, collection)
			continue
		}
		replicaDir, err := a.FindVolumeOnServer(ctx, source, vid, collection)
		if err != nil {
			return nil, err
		}
		for _, place := range places {
			glog.Infof("Volume %d/%s will be restored from %s to %s (Size %s)",
				vid, collection, HostName(source), place.Host, util.BytesToHumanReadable(place.Size))
			plan = append(plan, &LargeFileRestore{
				VolumeId:    vid,
				Collection:  collection,
				Target:      place,
				ReplicaHost: HostName(source),
				ReplicaDir:  replicaDir,
			})
		}
	}
	sort.SliceStable(plan, func(i, j int) bool { return plan[i].Target.Host < plan[j].Target.Host })
	return plan, nil
}

// RepairLargeFiles restores oversized volume files from a healthy replica. Each
// affected volume server is stopped while its files are copied over.
func (a *Admin) RepairLargeFiles(ctx context.Context, dryRun bool) ([]*LargeFileRestore, error) {
	large, err := a.FindLargeFiles(ctx)
	if err != nil {
		return nil, err
	}
	distribution, err := a.Discover(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := a.PlanLargeFileRestores(ctx, large, distribution)
	if err != nil || dryRun {
		return plan, err
	}

	byHost := make(map[string][]*LargeFileRestore)
	var hosts []string
	for _, restore := range plan {
		host := restore.Target.Host
		if _, found := byHost[host]; !found {
			hosts = append(hosts, host)
		}
		byHost[host] = append(byHost[host], restore)
	}
	for _, host := range hosts {
		if err := a.restoreOnHost(ctx, host, byHost[host]); err != nil {
			return plan, err
		}
	}
	return plan, nil
}

func (a *Admin) restoreOnHost(ctx context.Context, host string, restores []*LargeFileRestore) (err error) {
	shell, err := a.shells.ForHost(host)
	if err != nil {
		return err
	}
	glog.Infof("Stop volume server on %s", host)
	if _, err := remote.Run(ctx, shell, "supervisorctl stop "+supervisorProgram); err != nil {
		return err
	}
	defer func() {
		glog.Infof("Start volume server on %s", host)
		if _, startErr := remote.Run(context.WithoutCancel(ctx), shell, "supervisorctl start "+supervisorProgram); startErr != nil && err == nil {
			err = startErr
		}
	}()

	for _, restore := range restores {
		dir := restore.Target.Dir
		tmpDir := path.Join(dir, "tmp")
		names := []string{
			BaseName(restore.VolumeId, restore.Collection, "dat"),
			BaseName(restore.VolumeId, restore.Collection, "idx"),
		}
		if _, err := remote.Run(ctx, shell, "mkdir -p "+remote.Quote(tmpDir)); err != nil {
			return err
		}
		for _, name := range names {
			from := restore.ReplicaHost + ":" + path.Join(restore.ReplicaDir, name)
			glog.Infof("Copy %s to %s:%s", from, host, path.Join(tmpDir, name))
			if _, err := remote.Run(ctx, shell, "scp "+remote.Quote(from)+" "+remote.Quote(path.Join(tmpDir, name))); err != nil {
				return err
			}
		}
		for _, name := range names {
			glog.Infof("Move temporary file to %s", path.Join(dir, name))
			if err := move(ctx, shell, path.Join(tmpDir, name), path.Join(dir, name)); err != nil {
				return err
			}
		}
	}
	return nil
}
