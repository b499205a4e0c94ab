package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP_MultiFile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"SA1.shp": "shp",
		"SA1.dbf": "dbf",
		"SA1.shx": "shx",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	data, err := os.ReadFile(filepath.Join(destDir, "SA1.dbf"))
	require.NoError(t, err)
	assert.Equal(t, "dbf", string(data))
}

func TestExtractZIP_ZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"../escape.shp": "bad",
	})

	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIP_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip: open archive")
}

func TestExtractShapefile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"LGA_2020_AUST/LGA_2020_AUST.shp": "shp",
		"LGA_2020_AUST/LGA_2020_AUST.shx": "shx",
		"LGA_2020_AUST/LGA_2020_AUST.dbf": "dbf",
		"LGA_2020_AUST/LGA_2020_AUST.cpg": "UTF-8",
	})

	destDir := t.TempDir()
	shpPath, err := ExtractShapefile(zipPath, destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "LGA_2020_AUST", "LGA_2020_AUST.shp"), shpPath)
	_, err = os.Stat(filepath.Join(destDir, "LGA_2020_AUST", "LGA_2020_AUST.dbf"))
	assert.NoError(t, err)
}

func TestExtractShapefile_NoShp(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"readme.txt": "x"})

	_, err := ExtractShapefile(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .shp file")
}

func TestExtractShapefile_Ambiguous(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"a.shp": "x", "b.shp": "y"})

	_, err := ExtractShapefile(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than one .shp")
}
