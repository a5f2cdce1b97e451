package services

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbite/canteen/pkg/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type brokenDisk struct{ storage.Disk }

func (brokenDisk) Put(context.Context, string, io.Reader, string) error {
	return errors.New("bucket unreachable")
}

func TestUploadFallsBackToDataURL(t *testing.T) {
	for name, disk := range map[string]storage.Disk{"no disk": nil, "failing disk": brokenDisk{}} {
		t.Run(name, func(t *testing.T) {
			res := NewUploadService(disk).Upload(context.Background(), UploadInput{Filename: "logo.png", Data: pngHeader})

			assert.False(t, res.Stored)
			require.True(t, strings.HasPrefix(res.URL, "data:image/png;base64,"), res.URL)
			raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(res.URL, "data:image/png;base64,"))
			require.NoError(t, err)
			assert.Equal(t, pngHeader, raw)
		})
	}
}

func TestUploadStoresOnDisk(t *testing.T) {
	root := t.TempDir()
	disk, err := storage.NewLocal(root, "/storage")
	require.NoError(t, err)

	res := NewUploadService(disk).Upload(context.Background(), UploadInput{Filename: "menu.JPG", ContentType: "image/jpeg", Data: []byte("jpeg")})
	require.True(t, res.Stored)
	assert.True(t, strings.HasPrefix(res.URL, "/storage/images/"))
	assert.True(t, strings.HasSuffix(res.URL, ".jpg"))

	stored, err := os.ReadFile(filepath.Join(root, strings.TrimPrefix(res.URL, "/storage/")))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(stored))
}
