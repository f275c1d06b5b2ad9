//go:build cgo

package embeddings

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlatformArchive(t *testing.T) {
	tests := []struct {
		goos    string
		goarch  string
		want    string
		wantErr bool
	}{
		{"linux", "amd64", "linux-x64", false},
		{"linux", "arm64", "linux-aarch64", false},
		{"darwin", "amd64", "osx-x86_64", false},
		{"darwin", "arm64", "osx-arm64", false},
		{"windows", "amd64", "", true},
		{"linux", "riscv64", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			got, err := getPlatformArchive(tt.goos, tt.goarch)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedPlatform)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildDownloadURL(t *testing.T) {
	url := buildDownloadURL("1.23.0", "linux-x64")
	assert.Equal(t, "https://github.com/microsoft/onnxruntime/releases/download/v1.23.0/onnxruntime-linux-x64-1.23.0.tgz", url)
}

func TestGetLibraryName(t *testing.T) {
	assert.Equal(t, "libonnxruntime.so", getLibraryName("linux"))
	assert.Equal(t, "libonnxruntime.dylib", getLibraryName("darwin"))
	assert.Equal(t, "libonnxruntime.so", getLibraryName("plan9"))
}

func TestGetONNXLibraryPath_EnvOverride(t *testing.T) {
	t.Setenv("ONNX_PATH", "/opt/onnx/libonnxruntime.so")
	assert.Equal(t, "/opt/onnx/libonnxruntime.so", GetONNXLibraryPath())
}

// buildTestArchive creates a tgz resembling the onnxruntime release layout.
func buildTestArchive(t *testing.T, entries map[string][]byte) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	return &buf
}

func TestExtractTarGz(t *testing.T) {
	platform, err := getPlatformArchive(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		t.Skipf("unsupported test platform: %v", err)
	}
	libName := getLibraryName(runtime.GOOS)

	prefix := "onnxruntime-" + platform + "-1.23.0/lib/"
	archive := buildTestArchive(t, map[string][]byte{
		prefix + libName:              []byte("fake library"),
		prefix + "onnx_extra.txt":     []byte("extra"),
		"onnxruntime-other/README.md": []byte("ignored"),
	})

	destDir := t.TempDir()
	require.NoError(t, extractTarGz(archive, destDir, "1.23.0", platform))

	content, err := os.ReadFile(filepath.Join(destDir, libName))
	require.NoError(t, err)
	assert.Equal(t, "fake library", string(content))

	_, err = os.Stat(filepath.Join(destDir, "README.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractTarGz_MissingLibrary(t *testing.T) {
	platform, err := getPlatformArchive(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		t.Skipf("unsupported test platform: %v", err)
	}

	archive := buildTestArchive(t, map[string][]byte{
		"onnxruntime-" + platform + "-1.23.0/lib/notes.txt": []byte("no library here"),
	})

	err = extractTarGz(archive, t.TempDir(), "1.23.0", platform)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in archive")
}
