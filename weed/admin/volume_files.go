package admin

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/operation"
	"github.com/brstgt/seaweed-admin/weed/remote"
)

// VolumeFile is a .dat file found on disk of a volume server.
type VolumeFile struct {
	Server     string
	Host       string
	Dir        string
	Size       uint64
	VolumeId   uint32
	Collection string
}

// BaseName is the file name of a volume file, "<collection>_<vid>.<ext>" or "<vid>.<ext>".
func BaseName(vid uint32, collection, ext string) string {
	if collection == "" {
		return fmt.Sprintf("%d.%s", vid, ext)
	}
	return fmt.Sprintf("%s_%d.%s", collection, vid, ext)
}

func VolumePath(dir string, vid uint32, collection, ext string) string {
	return path.Join(dir, BaseName(vid, collection, ext))
}

func (a *Admin) DisksOnServer(ctx context.Context, server string) ([]*operation.DiskStatus, error) {
	stats, err := a.option.VolumeServer.DiskStats(ctx, server)
	if err != nil {
		return nil, err
	}
	return stats.DiskStatuses, nil
}

// FindVolumeOnServer probes every disk of the server for the volume's .dat file
// and returns the directory holding it.
func (a *Admin) FindVolumeOnServer(ctx context.Context, server string, vid uint32, collection string) (string, error) {
	glog.V(1).Infof("find %s/%d on %s", collection, vid, server)
	disks, err := a.DisksOnServer(ctx, server)
	if err != nil {
		return "", err
	}
	shell, err := a.shellFor(server)
	if err != nil {
		return "", err
	}
	for _, disk := range disks {
		found, err := remote.Probe(ctx, shell, "ls "+remote.Quote(VolumePath(disk.Dir, vid, collection, "dat")))
		if err != nil {
			return "", err
		}
		if found {
			return disk.Dir, nil
		}
	}
	return "", fmt.Errorf("%w: %s/%d on %s", ErrVolumeNotFound, collection, vid, server)
}

// DeleteVolume removes the data and index file of a volume. Failures are logged.
func (a *Admin) DeleteVolume(ctx context.Context, server string, vid uint32, collection string) {
	glog.Warningf("delete %s/%d on %s", collection, vid, server)
	if err := a.deleteVolume(ctx, server, vid, collection); err != nil {
		glog.Errorf("delete %s/%d on %s: %v", collection, vid, server, err)
	}
}

func (a *Admin) deleteVolume(ctx context.Context, server string, vid uint32, collection string) error {
	dir, err := a.FindVolumeOnServer(ctx, server, vid, collection)
	if err != nil {
		return err
	}
	shell, err := a.shellFor(server)
	if err != nil {
		return err
	}
	var errs []error
	for _, ext := range []string{"dat", "idx"} {
		if _, err := remote.Run(ctx, shell, "rm "+remote.Quote(VolumePath(dir, vid, collection, ext))); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FindPhysicalVolumeFiles lists the .dat files on a host, grouped by volume id.
// findOptions are extra find predicates such as "-size +32G".
func (a *Admin) FindPhysicalVolumeFiles(ctx context.Context, host string, findOptions string) (map[uint32][]*VolumeFile, error) {
	shell, err := a.shells.ForHost(host)
	if err != nil {
		return nil, err
	}
	command := fmt.Sprintf("find %s -name '*.dat' -type f %s -exec ls -la {} \\;", remote.Quote(a.option.DataRoot), findOptions)
	lines, err := remote.Run(ctx, shell, command)
	if err != nil {
		return nil, fmt.Errorf("find volume files on %s: %w", host, err)
	}
	files := make(map[uint32][]*VolumeFile)
	for _, line := range lines {
		file, err := parseLsLine(line)
		if err != nil {
			glog.Warningf("%s: %v", host, err)
			continue
		}
		file.Host = host
		file.Server = a.ServerAddress(host)
		files[file.VolumeId] = append(files[file.VolumeId], file)
	}
	return files, nil
}

// parseLsLine reads size and path from an "ls -la" line.
func parseLsLine(line string) (*VolumeFile, error) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return nil, fmt.Errorf("unexpected ls line %q", line)
	}
	size, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("size in ls line %q: %w", line, err)
	}
	filePath := strings.Join(fields[8:], " ")
	vid, collection, err := ParseVolumeFileName(path.Base(filePath))
	if err != nil {
		return nil, err
	}
	return &VolumeFile{
		Dir:        path.Dir(filePath),
		Size:       size,
		VolumeId:   vid,
		Collection: collection,
	}, nil
}

// ParseVolumeFileName splits "<collection>_<vid>.dat" or "<vid>.dat".
func ParseVolumeFileName(name string) (vid uint32, collection string, err error) {
	base := strings.TrimSuffix(name, path.Ext(name))
	idPart := base
	if i := strings.LastIndex(base, "_"); i >= 0 {
		collection, idPart = base[:i], base[i+1:]
	}
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("volume file name %q: %w", name, err)
	}
	return uint32(id), collection, nil
}

// volumesWithFiles keeps the first file of every volume, ordered by volume id.
func volumesWithFiles(files map[uint32][]*VolumeFile) []*VolumeFile {
	var result []*VolumeFile
	for _, list := range files {
		result = append(result, list[0])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VolumeId < result[j].VolumeId })
	return result
}
