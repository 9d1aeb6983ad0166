package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brstgt/seaweed-admin/weed/remote"
)

// exportTimeFormat is the layout weed export expects for -newer.
const exportTimeFormat = "2006-01-02T15:04:05"

// FileRecord is one live needle of a volume as listed by weed export.
type FileRecord struct {
	FileId string
	Name   string
	Size   int64
	Mime   string
}

// ParseExportLine understands both the "key=<fid> Name=<n> Size=<n> gzip=<b> mime=<t>"
// and the tab separated output of weed export. ok is false for the tab header.
func ParseExportLine(line string) (record FileRecord, ok bool, err error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return record, false, nil
	}
	if strings.Contains(line, "\t") {
		fields := strings.Split(line, "\t")
		if fields[0] == "key" {
			return record, false, nil
		}
		if len(fields) < 5 {
			return record, false, fmt.Errorf("unexpected export line %q", line)
		}
		size, _ := strconv.ParseInt(fields[2], 10, 64)
		return FileRecord{FileId: fields[0], Name: fields[1], Size: size, Mime: fields[4]}, true, nil
	}

	values := make(map[string]string)
	for _, part := range strings.Fields(line) {
		if key, value, found := strings.Cut(part, "="); found {
			values[key] = value
		}
	}
	fid, found := values["key"]
	if !found || fid == "" {
		return record, false, fmt.Errorf("no key in export line %q", line)
	}
	size, _ := strconv.ParseInt(values["Size"], 10, 64)
	return FileRecord{FileId: fid, Name: values["Name"], Size: size, Mime: values["mime"]}, true, nil
}

func (a *Admin) exportCommand(dir string, vid uint32, collection string, newerThan time.Time) string {
	command := fmt.Sprintf("weed export -dir %s -volumeId %d -collection %s",
		remote.Quote(dir), vid, remote.Quote(collection))
	if !newerThan.IsZero() {
		command += " -newer " + remote.Quote(newerThan.In(a.option.ExportLocation).Format(exportTimeFormat))
	}
	return command
}

// ListVolumeFiles exports the file list of a volume in dir on server, keyed by file id.
// A zero newerThan lists all files.
func (a *Admin) ListVolumeFiles(ctx context.Context, server, dir string, vid uint32, collection string, newerThan time.Time) (map[string]FileRecord, error) {
	shell, err := a.shellFor(server)
	if err != nil {
		return nil, err
	}
	lines, err := remote.Run(ctx, shell, a.exportCommand(dir, vid, collection, newerThan))
	if err != nil {
		return nil, fmt.Errorf("export volume %s/%d from %s: %w", collection, vid, server, err)
	}
	files := make(map[string]FileRecord, len(lines))
	for _, line := range lines {
		record, ok, err := ParseExportLine(line)
		if err != nil {
			return nil, fmt.Errorf("export volume %s/%d from %s: %w", collection, vid, server, err)
		}
		if ok {
			files[record.FileId] = record
		}
	}
	return files, nil
}
