package operation

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

type StoreRequest struct {
	FileName     string
	MimeType     string
	Data         []byte
	Ttl          string
	NoReplicate  bool
	LastModified time.Time
}

// BuildStoreUrl renders {server}/{fid} with the optional ttl, type=replicate and ts parameters.
// type=replicate makes the volume server write only its own copy.
func BuildStoreUrl(server, fid string, request *StoreRequest) string {
	values := make(url.Values)
	if request.Ttl != "" {
		values.Add("ttl", request.Ttl)
	}
	if request.NoReplicate {
		values.Add("type", "replicate")
	}
	if !request.LastModified.IsZero() {
		values.Add("ts", strconv.FormatInt(request.LastModified.Unix(), 10))
	}
	u := fileUrl(server, fid)
	if len(values) > 0 {
		u += "?" + values.Encode()
	}
	return u
}

func (c *VolumeServerClient) Store(ctx context.Context, server, fid string, request *StoreRequest) error {
	fileName := request.FileName
	if fileName == "" {
		fileName = fid
	}
	u := BuildStoreUrl(server, fid, request)
	status, _, err := c.httpClient.PostMultipart(ctx, u, "file", fileName, request.MimeType, request.Data)
	if err != nil {
		return fmt.Errorf("store %s on %s: %w", fid, server, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("store %s on %s: unexpected status %d", fid, server, status)
	}
	return nil
}
