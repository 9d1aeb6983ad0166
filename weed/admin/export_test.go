package admin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExportLine(t *testing.T) {
	record, ok, err := ParseExportLine("key=3,01637037d6 Name=cat.jpg Size=2048 gzip=false mime=image/jpeg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, FileRecord{FileId: "3,01637037d6", Name: "cat.jpg", Size: 2048, Mime: "image/jpeg"}, record)

	_, ok, err = ParseExportLine("key\tname\tsize\tgzip\tmime\tmodified\tttl\tdeleted")
	require.NoError(t, err)
	assert.False(t, ok)

	record, ok, err = ParseExportLine("3,01637037d6\tcat.jpg\t2048\tfalse\timage/jpeg\t1714557600\t\tfalse\n")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, FileRecord{FileId: "3,01637037d6", Name: "cat.jpg", Size: 2048, Mime: "image/jpeg"}, record)

	_, ok, err = ParseExportLine("")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseExportLine("Name=cat.jpg Size=1")
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	admin := NewAdmin(&AdminOption{ExportLocation: time.FixedZone("CEST", 2*60*60)})

	assert.Equal(t, "weed export -dir /weedfs/1 -volumeId 3 -collection pictures",
		admin.exportCommand("/weedfs/1", 3, "pictures", time.Time{}))
	assert.Equal(t, "weed export -dir /weedfs/1 -volumeId 3 -collection pictures -newer 2024-05-01T14:00:00",
		admin.exportCommand("/weedfs/1", 3, "pictures", testNow))
}
