package compose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
services:
  web:
    image: nginx:alpine
    ports:
      - "80"
      - "8443:443"
  db:
    image: postgres:16
    ports:
      - "5432:5432"
`

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewFiles(t *testing.T) {
	path := writeManifest(t, "docker-compose.yml", sampleManifest)

	files, err := NewFiles(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"db", "web"}, files.ServiceNames())
	assert.True(t, files.HasService("web"))
	assert.False(t, files.HasService("cache"))
	assert.Equal(t, []string{path}, files.Paths())
}

func TestNewFilesErrors(t *testing.T) {
	t.Run("no paths", func(t *testing.T) {
		_, err := NewFiles()
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFiles(filepath.Join(t.TempDir(), "nope.yml"))
		require.ErrorContains(t, err, "does not exist")
	})

	t.Run("no services", func(t *testing.T) {
		path := writeManifest(t, "empty.yml", "services: {}\n")
		_, err := NewFiles(path)
		require.ErrorContains(t, err, "declares no services")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeManifest(t, "bad.yml", "services: [:::\n")
		_, err := NewFiles(path)
		require.Error(t, err)
	})
}

func TestFilesOverride(t *testing.T) {
	base := writeManifest(t, "base.yml", sampleManifest)
	override := writeManifest(t, "override.yml", `
services:
  web:
    image: nginx:latest
    ports:
      - "9090:80"
`)

	files, err := NewFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, []string{"db", "web"}, files.ServiceNames())
	assert.Equal(t, []int{80}, files.DeclaredPorts("web"))
}

func TestDeclaredPorts(t *testing.T) {
	path := writeManifest(t, "docker-compose.yml", sampleManifest)

	files, err := NewFiles(path)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{80, 443}, files.DeclaredPorts("web"))
	assert.Equal(t, []int{5432}, files.DeclaredPorts("db"))
	assert.Nil(t, files.DeclaredPorts("unknown"))
}

func TestFilesArgs(t *testing.T) {
	a := writeManifest(t, "a.yml", sampleManifest)
	b := writeManifest(t, "b.yml", sampleManifest)

	files, err := NewFiles(a, b)
	require.NoError(t, err)

	assert.Equal(t, []string{"-f", a, "-f", b}, files.args())
}
