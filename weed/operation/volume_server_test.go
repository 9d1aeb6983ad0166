package operation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	util_http "github.com/brstgt/seaweed-admin/weed/util/http"
)

func TestVolumeInformationDerivedValues(t *testing.T) {
	vi := &VolumeInformation{Size: 1000, DeletedByteCount: 250, FileCount: 10, DeleteCount: 4}
	assert.Equal(t, uint64(750), vi.LiveSize())
	assert.Equal(t, int64(6), vi.LiveFileCount())
	assert.InDelta(t, 0.4, vi.GarbageRatio(), 1e-9)

	broken := &VolumeInformation{Size: 10, DeletedByteCount: 20, FileCount: 1, DeleteCount: 3}
	assert.Equal(t, uint64(0), broken.LiveSize())
	assert.Equal(t, int64(0), broken.LiveFileCount())
	assert.Equal(t, float64(3), broken.GarbageRatio())

	empty := &VolumeInformation{}
	assert.Equal(t, float64(0), empty.GarbageRatio())
}

func TestBuildStoreUrl(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	assert.Equal(t, "http://vs1:8080/3,01637037d6", BuildStoreUrl("vs1:8080", "3,01637037d6", &StoreRequest{}))
	assert.Equal(t, "http://vs1:8080/3,01637037d6?ts=1700000000&ttl=3d&type=replicate",
		BuildStoreUrl("http://vs1:8080", "3,01637037d6", &StoreRequest{Ttl: "3d", NoReplicate: true, LastModified: ts}))
}

func TestStoreSendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/3,01637037d6", r.URL.Path)
		assert.Equal(t, "replicate", r.URL.Query().Get("type"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "hello", string(data))
		assert.Equal(t, "a.txt", header.Filename)
		assert.Equal(t, "text/plain", header.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"name":"a.txt","size":5}`)
	}))
	defer server.Close()

	c := NewVolumeServerClient(util_http.NewHttpClient())
	err := c.Store(context.Background(), server.URL, "3,01637037d6", &StoreRequest{
		FileName: "a.txt", MimeType: "text/plain", Data: []byte("hello"), NoReplicate: true,
	})
	assert.NoError(t, err)
}

func TestRetrieveAndLastModified(t *testing.T) {
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3,01" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
		fmt.Fprint(w, "content")
	}))
	defer server.Close()

	c := NewVolumeServerClient(util_http.NewHttpClient())
	ctx := context.Background()

	data, err := c.Retrieve(ctx, server.URL, "3,01")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	lm, err := c.LastModified(ctx, server.URL, "3,01")
	require.NoError(t, err)
	assert.True(t, modified.Equal(lm))

	_, err = c.Retrieve(ctx, server.URL, "3,02")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.LastModified(ctx, server.URL, "3,02")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := c.Exists(ctx, server.URL, "3,02")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVolumeAdminEndpoints(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		switch r.URL.Path {
		case "/status":
			fmt.Fprint(w, `{"Version":"3.80","Volumes":[{"Id":7,"Size":100,"Collection":"pictures","FileCount":3,"DeleteCount":1,"DeletedByteCount":10,"ReadOnly":false,"ReplicaPlacement":{"node":1},"Ttl":{}}]}`)
		case "/stats/disk":
			fmt.Fprint(w, `{"Version":"3.80","DiskStatuses":[{"Dir":"/weedfs/1","All":100,"Used":10,"Free":90}]}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	}))
	defer server.Close()

	c := NewVolumeServerClient(util_http.NewHttpClient())
	ctx := context.Background()

	status, err := c.Status(ctx, server.URL)
	require.NoError(t, err)
	require.Len(t, status.Volumes, 1)
	assert.Equal(t, uint32(7), status.Volumes[0].Id)
	assert.Equal(t, "pictures", status.Volumes[0].Collection)

	disks, err := c.DiskStats(ctx, server.URL)
	require.NoError(t, err)
	assert.Equal(t, "/weedfs/1", disks.DiskStatuses[0].Dir)

	require.NoError(t, c.Unmount(ctx, server.URL, 7))
	require.NoError(t, c.Mount(ctx, server.URL, 7))
	assert.Equal(t, []string{
		"/status?",
		"/stats/disk?",
		"/admin/volume/unmount?volume=7",
		"/admin/volume/mount?volume=7",
	}, paths)
}
