package schema

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/render-bridge-server/internal/apperror"
)

type formField struct {
	name  string
	value string
}

func buildRequest(t *testing.T, fields []formField, includeSceneFile bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, f := range fields {
		require.NoError(t, writer.WriteField(f.name, f.value))
	}
	if includeSceneFile {
		part, err := writer.CreateFormFile("scene", "scene.gltf")
		require.NoError(t, err)
		_, err = part.Write([]byte(`{"asset":{"version":"2.0"}}`))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/render", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func colorFields() []formField {
	return []formField{
		{"scene_sha256", "abc123"},
		{"image_type", "color"},
		{"width", "640"},
		{"height", "480"},
		{"near", "0.01"},
		{"far", "10.0"},
		{"focal_x", "579.411"},
		{"focal_y", "579.411"},
		{"fov_x", "0.785398"},
		{"fov_y", "0.785398"},
		{"center_x", "319.5"},
		{"center_y", "239.5"},
	}
}

func TestParseValidColorRequestSucceeds(t *testing.T) {
	dir := t.TempDir()
	req := buildRequest(t, colorFields(), true)

	parsed, err := Parse(req, dir)
	require.NoError(t, err)
	assert.Equal(t, "color", parsed.ImageType)
	assert.Equal(t, 640, parsed.Width)
	assert.FileExists(t, parsed.ScenePath)
}

func TestParseDepthRequestRequiresMinMaxDepth(t *testing.T) {
	dir := t.TempDir()
	fields := colorFields()
	fields[1] = formField{"image_type", "depth"}
	req := buildRequest(t, fields, true)

	_, err := Parse(req, dir)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.KindBadRequest, appErr.Kind)
}

func TestParseDepthRequestWithValidMinMaxDepthSucceeds(t *testing.T) {
	dir := t.TempDir()
	fields := colorFields()
	fields[1] = formField{"image_type", "depth"}
	fields = append(fields, formField{"min_depth", "0.01"}, formField{"max_depth", "10.0"})
	req := buildRequest(t, fields, true)

	parsed, err := Parse(req, dir)
	require.NoError(t, err)
	assert.Equal(t, 0.01, parsed.MinDepth)
	assert.Equal(t, 10.0, parsed.MaxDepth)
}

func TestParseRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	fields := append(colorFields(), formField{"bogus_field", "1"})
	req := buildRequest(t, fields, true)

	_, err := Parse(req, dir)
	require.Error(t, err)
}

func TestParseIgnoresSubmitField(t *testing.T) {
	dir := t.TempDir()
	fields := append(colorFields(), formField{"submit", "Render"})
	req := buildRequest(t, fields, true)

	_, err := Parse(req, dir)
	require.NoError(t, err)
}

func TestParseMissingFieldIsBadRequest(t *testing.T) {
	dir := t.TempDir()
	fields := colorFields()[1:] // drop scene_sha256
	req := buildRequest(t, fields, true)

	_, err := Parse(req, dir)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.KindBadRequest, appErr.Kind)
}

func TestParseIllTypedFieldIsBadRequest(t *testing.T) {
	dir := t.TempDir()
	fields := colorFields()
	fields[2] = formField{"width", "not-a-number"}
	req := buildRequest(t, fields, true)

	_, err := Parse(req, dir)
	require.Error(t, err)
}

func TestParseRequiresExactlyOneSceneFilePart(t *testing.T) {
	dir := t.TempDir()
	req := buildRequest(t, colorFields(), false)

	_, err := Parse(req, dir)
	require.Error(t, err)
}

func TestParsePersistsSceneUnderTempDirWithUniqueFilenames(t *testing.T) {
	dir := t.TempDir()
	first, err := Parse(buildRequest(t, colorFields(), true), dir)
	require.NoError(t, err)
	second, err := Parse(buildRequest(t, colorFields(), true), dir)
	require.NoError(t, err)

	assert.NotEqual(t, first.ScenePath, second.ScenePath)
}
