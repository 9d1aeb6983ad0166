package operation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	util_http "github.com/brstgt/seaweed-admin/weed/util/http"
)

var ErrNotFound = util_http.ErrNotFound

func fileUrl(server, fid string) string {
	return NormalizeUrl(server) + "/" + fid
}

// Retrieve downloads a needle. Missing needles yield an error matching ErrNotFound.
func (c *VolumeServerClient) Retrieve(ctx context.Context, server, fid string) ([]byte, error) {
	b, err := c.httpClient.Get(ctx, fileUrl(server, fid))
	if err != nil {
		return nil, fmt.Errorf("retrieve %s from %s: %w", fid, server, err)
	}
	return b, nil
}

// LastModified reads the Last-Modified header with a HEAD request.
// The zero time is returned when the server does not send one.
func (c *VolumeServerClient) LastModified(ctx context.Context, server, fid string) (time.Time, error) {
	header, err := c.httpClient.Head(ctx, fileUrl(server, fid))
	if err != nil {
		return time.Time{}, fmt.Errorf("head %s on %s: %w", fid, server, err)
	}
	value := header.Get("Last-Modified")
	if value == "" {
		return time.Time{}, nil
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse Last-Modified %q of %s: %w", value, fid, err)
	}
	return t, nil
}

func (c *VolumeServerClient) Exists(ctx context.Context, server, fid string) (bool, error) {
	_, err := c.httpClient.Head(ctx, fileUrl(server, fid))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}
