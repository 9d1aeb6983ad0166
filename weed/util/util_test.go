package util

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(10, 0))
	assert.Equal(t, 25.0, Percent(1, 4))
}

func TestBytesToHumanReadable(t *testing.T) {
	assert.Equal(t, "32 GiB", BytesToHumanReadable(32<<30))
}

func TestWaitForStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, WaitFor(ctx, time.Hour), context.Canceled)
	assert.NoError(t, WaitFor(context.Background(), time.Millisecond))
}

func TestResolvePath(t *testing.T) {
	t.Setenv("HOME", "/home/admin")
	assert.Equal(t, "/home/admin/.ssh/id_rsa", ResolvePath("~/.ssh/id_rsa"))
	assert.Equal(t, "/home/admin", ResolvePath("~"))
	assert.Equal(t, filepath.Join("relative", "db"), ResolvePath("relative/db"))
}
