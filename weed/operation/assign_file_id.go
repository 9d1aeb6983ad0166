package operation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrNoWritableVolumes is returned by Assign when the collection has no
// volume left to write to. Grow fixes it.
var ErrNoWritableVolumes = errors.New("no writable volumes")

type VolumeAssignRequest struct {
	Count       uint64
	Replication string
	Collection  string
	Ttl         string
}

type AssignResult struct {
	Fid       string `json:"fid,omitempty"`
	Url       string `json:"url,omitempty"`
	PublicUrl string `json:"publicUrl,omitempty"`
	Count     uint64 `json:"count,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (mc *MasterClient) Assign(ctx context.Context, request *VolumeAssignRequest) (*AssignResult, error) {
	values := make(url.Values)
	count := request.Count
	if count == 0 {
		count = 1
	}
	values.Add("count", strconv.FormatUint(count, 10))
	if request.Replication != "" {
		values.Add("replication", request.Replication)
	}
	if request.Collection != "" {
		values.Add("collection", request.Collection)
	}
	if request.Ttl != "" {
		values.Add("ttl", request.Ttl)
	}

	var ret AssignResult
	if err := mc.masterGet(ctx, "/dir/assign", values, &ret); err != nil {
		return nil, err
	}
	if ret.Error != "" {
		if isNoWritableVolumes(ret.Error) {
			return nil, fmt.Errorf("%w: %s", ErrNoWritableVolumes, ret.Error)
		}
		return nil, errors.New(ret.Error)
	}
	if ret.Fid == "" {
		return nil, errors.New("master returned no file id")
	}
	return &ret, nil
}

func isNoWritableVolumes(message string) bool {
	message = strings.ToLower(message)
	return strings.Contains(message, "no free volumes") || strings.Contains(message, "no writable volumes")
}
