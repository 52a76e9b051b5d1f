package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BogdanPhenda/Nova/internal/upload"
)

const validCSV = "listing_id,address,price,area_total,complex_name\n" +
	"x1,\"Москва, ул. Ленина, 1\",5000000,50,Солнечный\n" +
	"x2,\"Москва, ул. Ленина, 3\",7000000,70,Солнечный\n"

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// run выполняет feedctl с аргументами и возвращает stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := Clock
	Clock = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { Clock = prev })

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String() + errOut.String(), err
}

func TestCommandsMetadata(t *testing.T) {
	assert.Equal(t, "validate [file]", ValidateCmd().Use)
	assert.Equal(t, "version", VersionCmd().Use)

	render := RenderCmd()
	assert.Equal(t, "render [file]", render.Use)
	for _, name := range []string{"owner", "source-file", "out"} {
		assert.NotNil(t, render.Flags().Lookup(name), "нет флага %s", name)
	}
}

func TestValidate_OK(t *testing.T) {
	out, err := run(t, "validate", writeTemp(t, "listings.csv", validCSV))
	require.NoError(t, err)
	assert.Contains(t, out, "Формат: csv")
	assert.NotContains(t, out, "Ошибки")
}

func TestValidate_Invalid(t *testing.T) {
	path := writeTemp(t, "listings.csv", "listing_id,address,area_total\nx1,Москва,50\n")
	out, err := run(t, "validate", path)
	require.ErrorIs(t, err, ErrInvalidFile)
	assert.Contains(t, out, "Отсутствует обязательная колонка: price")
}

func TestValidate_Unsupported(t *testing.T) {
	_, err := run(t, "validate", writeTemp(t, "listings.txt", validCSV))
	require.ErrorIs(t, err, upload.ErrUnsupportedFormat)
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := run(t, "validate", filepath.Join(t.TempDir(), "none.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRender_Stdout(t *testing.T) {
	out, err := run(t, "render", writeTemp(t, "listings.csv", validCSV), "--owner", "7")
	require.NoError(t, err)
	assert.Contains(t, out, `<generation-date>2026-03-01T12:00:00Z</generation-date>`)
	assert.Contains(t, out, `<complex name="Солнечный">`)
	assert.Contains(t, out, `internal-id="x1"`)
	assert.Contains(t, out, `internal-id="x2"`)
}

func TestRender_OutFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "feeds", "feed_7.xml")
	out, err := run(t, "render", writeTemp(t, "listings.csv", validCSV), "--owner", "7", "--out", target)
	require.NoError(t, err)
	assert.Contains(t, out, "2 объявлений")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `internal-id="x2"`)
}

func TestRender_InvalidFile(t *testing.T) {
	path := writeTemp(t, "listings.csv", "listing_id,address,price,area_total\nx1,Москва,дорого,50\n")
	target := filepath.Join(t.TempDir(), "feed.xml")

	_, err := run(t, "render", path, "--owner", "7", "--out", target)
	require.ErrorIs(t, err, ErrInvalidFile)
	assert.NoFileExists(t, target)
}

func TestRender_RequiresOwner(t *testing.T) {
	_, err := run(t, "render", writeTemp(t, "listings.csv", validCSV))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "feedctl dev")
}
