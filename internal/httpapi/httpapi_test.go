package httpapi

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/render-bridge-server/internal/pipeline"
)

func floatsToBase64(values []float32) string {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func testGLTFBytes(withCamera bool) []byte {
	positions := []float32{-1, -1, -2, 1, -1, -2, 0, 1, -2}
	nodes := []map[string]interface{}{{"name": "Box", "mesh": 0}}
	if withCamera {
		nodes = append(nodes, map[string]interface{}{"name": "Camera Node", "camera": 0, "translation": []float64{0, 0, 5}})
	}
	doc := map[string]interface{}{
		"asset":       map[string]string{"version": "2.0"},
		"buffers":     []map[string]interface{}{{"uri": "data:application/octet-stream;base64," + floatsToBase64(positions), "byteLength": 4 * len(positions)}},
		"bufferViews": []map[string]interface{}{{"buffer": 0, "byteOffset": 0, "byteLength": 4 * len(positions)}},
		"accessors":   []map[string]interface{}{{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"}},
		"meshes":      []map[string]interface{}{{"name": "Box", "primitives": []map[string]interface{}{{"attributes": map[string]int{"POSITION": 0}}}}},
		"cameras":     []map[string]interface{}{{"type": "perspective"}},
		"nodes":       nodes,
		"scenes":      []map[string]interface{}{{"nodes": []int{0, 1}}},
		"scene":       0,
	}
	raw, _ := json.Marshal(doc)
	return raw
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	orch := pipeline.New(pipeline.Config{}, nil)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(orch, t.TempDir(), logger)
}

func buildMultipartBody(t *testing.T, fields map[string]string, sceneBytes []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if sceneBytes != nil {
		part, err := writer.CreateFormFile("scene", "scene.gltf")
		require.NoError(t, err)
		_, err = part.Write(sceneBytes)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func colorFormFields() map[string]string {
	return map[string]string{
		"scene_sha256": "deadbeef",
		"image_type":   "color",
		"width":        "64",
		"height":       "64",
		"near":         "0.01",
		"far":          "10.0",
		"focal_x":      "100",
		"focal_y":      "100",
		"fov_x":        "0.7",
		"fov_y":        "0.7",
		"center_x":     "32",
		"center_y":     "32",
	}
}

func TestBannerReturnsHTMLWithExpectedTitle(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Render Bridge glTF Scene Server")
}

func TestBannerRejectsPost(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRenderColorReturnsPNG(t *testing.T) {
	server := newTestServer(t)
	body, contentType := buildMultipartBody(t, colorFormFields(), testGLTFBytes(true))
	req := httptest.NewRequest(http.MethodPost, "/render", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestRenderMissingSceneFileReturnsJSONError(t *testing.T) {
	server := newTestServer(t)
	body, contentType := buildMultipartBody(t, colorFormFields(), nil)
	req := httptest.NewRequest(http.MethodPost, "/render", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var parsed errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.True(t, parsed.Error)
	assert.Equal(t, 500, parsed.Code)
	assert.NotEmpty(t, parsed.Message)
}

func TestRenderMissingCameraNodeReturnsJSONError(t *testing.T) {
	server := newTestServer(t)
	body, contentType := buildMultipartBody(t, colorFormFields(), testGLTFBytes(false))
	req := httptest.NewRequest(http.MethodPost, "/render", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRenderGetReturnsMethodNotAllowed(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/render", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
