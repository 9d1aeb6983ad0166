package operation

import (
	"context"
	"fmt"
)

// Delete removes a needle from one volume server; the server replicates the delete.
func (c *VolumeServerClient) Delete(ctx context.Context, server, fid string) error {
	if err := c.httpClient.Delete(ctx, fileUrl(server, fid)); err != nil {
		return fmt.Errorf("delete %s on %s: %w", fid, server, err)
	}
	return nil
}
