package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/render-bridge-server/internal/schema"
)

func floatsToBase64(values []float32) string {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func writeTestGLTF(t *testing.T, dir, filename string, withCamera bool) string {
	t.Helper()
	positions := []float32{-1, -1, -2, 1, -1, -2, 0, 1, -2}
	nodes := []map[string]interface{}{
		{"name": "Box", "mesh": 0},
	}
	if withCamera {
		nodes = append(nodes, map[string]interface{}{"name": "Camera Node", "camera": 0, "translation": []float64{0, 0, 5}})
	}
	doc := map[string]interface{}{
		"asset":   map[string]string{"version": "2.0"},
		"buffers": []map[string]interface{}{{"uri": "data:application/octet-stream;base64," + floatsToBase64(positions), "byteLength": 4 * len(positions)}},
		"bufferViews": []map[string]interface{}{
			{"buffer": 0, "byteOffset": 0, "byteLength": 4 * len(positions)},
		},
		"accessors": []map[string]interface{}{
			{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
		},
		"meshes": []map[string]interface{}{
			{"name": "Box", "primitives": []map[string]interface{}{{"attributes": map[string]int{"POSITION": 0}}}},
		},
		"cameras": []map[string]interface{}{{"type": "perspective"}},
		"nodes":   nodes,
		"scenes":  []map[string]interface{}{{"nodes": []int{0, 1}}},
		"scene":   0,
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func writeTestPBRT(t *testing.T, dir string) string {
	t.Helper()
	content := `WorldBegin
AttributeBegin
Shape "trianglemesh" "point3 P" [-10 -10 -5 10 -10 -5 10 10 -5] "integer indices" [0 1 2]
AttributeEnd
WorldEnd
`
	path := filepath.Join(dir, "base.pbrt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func colorRequest(scenePath string) *schema.RenderRequest {
	return &schema.RenderRequest{
		ScenePath:   scenePath,
		SceneSHA256: "deadbeef",
		ImageType:   "color",
		Width:       64, Height: 64,
		Near: 0.01, Far: 10,
		FocalX: 100, FocalY: 100,
		FovX: 0.7, FovY: 0.7,
		CenterX: 32, CenterY: 32,
	}
}

func TestRenderColorReturnsPNGBytesAndCleansUpTempFiles(t *testing.T) {
	dir := t.TempDir()
	scenePath := writeTestGLTF(t, dir, "scene.gltf", true)
	orch := New(Config{}, nil)

	data, err := orch.Render(context.Background(), colorRequest(scenePath))
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = os.Stat(scenePath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "scene.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestRenderDepthEncodesWithinConfiguredWindow(t *testing.T) {
	dir := t.TempDir()
	scenePath := writeTestGLTF(t, dir, "scene.gltf", true)
	orch := New(Config{}, nil)

	req := colorRequest(scenePath)
	req.ImageType = "depth"
	req.MinDepth, req.MaxDepth = 0.01, 10.0

	data, err := orch.Render(context.Background(), req)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	gray, ok := img.(*image.Gray16)
	require.True(t, ok)
	assert.NotZero(t, gray.Bounds().Dx())
}

func TestRenderFailsWithoutCameraNode(t *testing.T) {
	dir := t.TempDir()
	scenePath := writeTestGLTF(t, dir, "scene.gltf", false)
	orch := New(Config{}, nil)

	_, err := orch.Render(context.Background(), colorRequest(scenePath))
	assert.Error(t, err)

	_, statErr := os.Stat(scenePath)
	assert.True(t, os.IsNotExist(statErr), "scene file must be cleaned up even on failure")
}

func TestDepthSettingsDoNotLeakIntoSubsequentColorRender(t *testing.T) {
	dir := t.TempDir()
	blendFile := writeTestPBRT(t, dir)
	orch := New(Config{BlendFile: blendFile}, nil)

	depthScenePath := writeTestGLTF(t, dir, "depth.gltf", true)
	depthReq := colorRequest(depthScenePath)
	depthReq.ImageType = "depth"
	depthReq.MinDepth, depthReq.MaxDepth = 0.01, 10.0

	depthData, err := orch.Render(context.Background(), depthReq)
	require.NoError(t, err)
	depthImg, err := png.Decode(bytes.NewReader(depthData))
	require.NoError(t, err)
	_, ok := depthImg.(*image.Gray16)
	require.True(t, ok, "depth render must produce 16-bit grayscale")

	colorScenePath := writeTestGLTF(t, dir, "color.gltf", true)
	colorData, err := orch.Render(context.Background(), colorRequest(colorScenePath))
	require.NoError(t, err)

	colorImg, err := png.Decode(bytes.NewReader(colorData))
	require.NoError(t, err)
	_, isGray16 := colorImg.(*image.Gray16)
	assert.False(t, isGray16, "color render after a depth render must not inherit the depth compositor")
	_, isRGBA := colorImg.(*image.RGBA)
	assert.True(t, isRGBA, "color render must produce RGBA, not a leftover depth/label encoding")
}

func TestRenderIsSerializedAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	orch := New(Config{}, nil)

	for i := 0; i < 3; i++ {
		scenePath := writeTestGLTF(t, dir, "scene"+string(rune('a'+i))+".gltf", true)
		_, err := orch.Render(context.Background(), colorRequest(scenePath))
		require.NoError(t, err)
	}
}
