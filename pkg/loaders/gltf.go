// Package loaders reads the 3-D interchange formats the render backend
// consumes: the request's client-supplied glTF scene, and (kept from the
// teacher) PBRT scene files used by the base-scene loader.
package loaders

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/df07/render-bridge-server/pkg/core"
	"github.com/df07/render-bridge-server/pkg/geometry"
	"github.com/df07/render-bridge-server/pkg/material"
)

// gltfDocument mirrors the subset of the glTF 2.0 JSON schema this reader
// needs: nodes, meshes, accessors/bufferViews/buffers, and materials.
type gltfDocument struct {
	Buffers     []gltfBuffer     `json:"buffers"`
	BufferViews []gltfBufferView `json:"bufferViews"`
	Accessors   []gltfAccessor   `json:"accessors"`
	Meshes      []gltfMesh       `json:"meshes"`
	Materials   []gltfMaterial   `json:"materials"`
	Nodes       []gltfNode       `json:"nodes"`
	Scenes      []gltfScene      `json:"scenes"`
	Scene       *int             `json:"scene"`
}

type gltfBuffer struct {
	URI        string `json:"uri"`
	ByteLength int    `json:"byteLength"`
}

type gltfBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	ByteStride int `json:"byteStride"`
}

type gltfAccessor struct {
	BufferView    *int   `json:"bufferView"`
	ByteOffset    int    `json:"byteOffset"`
	ComponentType int    `json:"componentType"`
	Count         int    `json:"count"`
	Type          string `json:"type"` // "SCALAR", "VEC2", "VEC3", ...
}

type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices"`
	Material   *int           `json:"material"`
}

type gltfMesh struct {
	Name       string          `json:"name"`
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfMaterial struct {
	Name         string `json:"name"`
	PBRMetallic  *struct {
		BaseColorFactor []float64 `json:"baseColorFactor"`
	} `json:"pbrMetallicRoughness"`
}

type gltfNode struct {
	Name        string  `json:"name"`
	Mesh        *int    `json:"mesh"`
	Camera      *int    `json:"camera"`
	Children    []int   `json:"children"`
	Translation []float64 `json:"translation"`
	Rotation    []float64 `json:"rotation"`
	Scale       []float64 `json:"scale"`
}

type gltfScene struct {
	Nodes []int `json:"nodes"`
}

// glTF component type codes (accessor.componentType).
const (
	componentTypeUnsignedByte  = 5121
	componentTypeUnsignedShort = 5123
	componentTypeUnsignedInt   = 5125
	componentTypeFloat         = 5126
)

// glTF component type byte widths.
var componentByteWidth = map[int]int{
	componentTypeUnsignedByte:  1,
	componentTypeUnsignedShort: 2,
	componentTypeUnsignedInt:   4,
	componentTypeFloat:         4,
}

// typeComponentCount maps an accessor's Type string to its component count.
var typeComponentCount = map[string]int{
	"SCALAR": 1,
	"VEC2":   2,
	"VEC3":   3,
	"VEC4":   4,
}

// GLTFMesh is a single imported mesh: its vertex positions, a flat
// triangle index list (LoadGLTF generates sequential indices when the
// primitive has none), its material, and the source node name.
type GLTFMesh struct {
	Vertices   []core.Vec3
	Indices    []int
	Material   material.Material
	ObjectName string
}

// GLTFScene is the result of loading a client-supplied glTF document: every
// mesh-bearing node, plus the single required camera node.
type GLTFScene struct {
	Meshes         []GLTFMesh
	CameraName     string
	HasCamera      bool
	CameraPosition core.Vec3
	CameraRotation core.Quat
}

// defaultBaseColor is used for meshes whose material omits
// pbrMetallicRoughness.baseColorFactor.
var defaultBaseColor = core.NewVec3(0.8, 0.8, 0.8)

// requiredCameraNodeName is the client contract of spec.md §6: the glTF
// must contain exactly one camera node with this exact name.
const requiredCameraNodeName = "Camera Node"

// LoadGLTF reads a glTF 2.0 file (the ".gltf" JSON form, with buffers
// embedded as base64 data URIs or referenced as sibling files) and returns
// every mesh-bearing node plus the camera node, by name "Camera Node" per
// the client contract.
func LoadGLTF(path string) (*GLTFScene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glTF file: %w", err)
	}

	var doc gltfDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse glTF JSON: %w", err)
	}

	buffers, err := loadBuffers(doc.Buffers, filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	result := &GLTFScene{}

	for _, node := range doc.Nodes {
		if node.Camera != nil {
			if node.Name == requiredCameraNodeName {
				transform := nodeTransform(node)
				result.CameraName = node.Name
				result.HasCamera = true
				result.CameraPosition = transform.translation
				result.CameraRotation = transform.rotation
			}
			continue
		}
		if node.Mesh == nil {
			continue
		}

		mesh := doc.Meshes[*node.Mesh]
		transform := nodeTransform(node)

		for _, prim := range mesh.Primitives {
			positionAccessor, ok := prim.Attributes["POSITION"]
			if !ok {
				continue
			}

			vertices, err := readVec3Accessor(doc, buffers, positionAccessor)
			if err != nil {
				return nil, fmt.Errorf("mesh %q: %w", node.Name, err)
			}
			for i, v := range vertices {
				vertices[i] = transform.apply(v)
			}

			var indices []int
			if prim.Indices != nil {
				indices, err = readIndexAccessor(doc, buffers, *prim.Indices)
				if err != nil {
					return nil, fmt.Errorf("mesh %q: %w", node.Name, err)
				}
			} else {
				indices = make([]int, len(vertices))
				for i := range indices {
					indices[i] = i
				}
			}

			mat := material.NewMaterial(defaultBaseColor)
			if prim.Material != nil && *prim.Material < len(doc.Materials) {
				mat = materialFromGLTF(doc.Materials[*prim.Material])
			}

			objectName := node.Name
			if objectName == "" {
				objectName = mesh.Name
			}

			result.Meshes = append(result.Meshes, GLTFMesh{
				Vertices:   vertices,
				Indices:    indices,
				Material:   mat,
				ObjectName: objectName,
			})
		}
	}

	return result, nil
}

// BuildMeshes converts every loaded GLTFMesh into a geometry.TriangleMesh
// marked as a client object (spec.md's "ClientObjects" collection).
func (s *GLTFScene) BuildMeshes() []*geometry.TriangleMesh {
	meshes := make([]*geometry.TriangleMesh, len(s.Meshes))
	for i, m := range s.Meshes {
		meshes[i] = geometry.NewTriangleMesh(m.Vertices, m.Indices, m.Material, m.ObjectName, true)
	}
	return meshes
}

func materialFromGLTF(m gltfMaterial) material.Material {
	if m.PBRMetallic != nil && len(m.PBRMetallic.BaseColorFactor) >= 3 {
		c := m.PBRMetallic.BaseColorFactor
		return material.NewMaterial(core.NewVec3(c[0], c[1], c[2]))
	}
	return material.NewMaterial(defaultBaseColor)
}

// simpleTransform is the affine transform carried by a glTF node: glTF
// nodes may also carry a full 4x4 matrix, but client scenes produced by the
// simulator's exporter always use the TRS form, so that is all this reader
// supports.
type simpleTransform struct {
	translation core.Vec3
	rotation    core.Quat
	scale       core.Vec3
}

func nodeTransform(n gltfNode) simpleTransform {
	t := simpleTransform{
		translation: core.NewVec3(0, 0, 0),
		rotation:    core.IdentityQuat(),
		scale:       core.NewVec3(1, 1, 1),
	}
	if len(n.Translation) == 3 {
		t.translation = core.NewVec3(n.Translation[0], n.Translation[1], n.Translation[2])
	}
	if len(n.Rotation) == 4 {
		t.rotation = core.Quat{X: n.Rotation[0], Y: n.Rotation[1], Z: n.Rotation[2], W: n.Rotation[3]}
	}
	if len(n.Scale) == 3 {
		t.scale = core.NewVec3(n.Scale[0], n.Scale[1], n.Scale[2])
	}
	return t
}

func (t simpleTransform) apply(v core.Vec3) core.Vec3 {
	scaled := core.NewVec3(v.X*t.scale.X, v.Y*t.scale.Y, v.Z*t.scale.Z)
	rotated := t.rotation.RotateVec3(scaled)
	return rotated.Add(t.translation)
}

func loadBuffers(buffers []gltfBuffer, baseDir string) ([][]byte, error) {
	out := make([][]byte, len(buffers))
	for i, b := range buffers {
		data, err := loadBufferData(b, baseDir)
		if err != nil {
			return nil, fmt.Errorf("buffer %d: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}

func loadBufferData(b gltfBuffer, baseDir string) ([]byte, error) {
	const dataURIPrefix = "data:"
	if strings.HasPrefix(b.URI, dataURIPrefix) {
		comma := strings.IndexByte(b.URI, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data URI")
		}
		return base64.StdEncoding.DecodeString(b.URI[comma+1:])
	}
	return os.ReadFile(filepath.Join(baseDir, b.URI))
}

func accessorBytes(doc gltfDocument, buffers [][]byte, accessorIndex int) (gltfAccessor, []byte, int, error) {
	if accessorIndex < 0 || accessorIndex >= len(doc.Accessors) {
		return gltfAccessor{}, nil, 0, fmt.Errorf("accessor index %d out of range", accessorIndex)
	}
	acc := doc.Accessors[accessorIndex]
	if acc.BufferView == nil {
		return gltfAccessor{}, nil, 0, fmt.Errorf("sparse/zero-filled accessors are not supported")
	}
	view := doc.BufferViews[*acc.BufferView]
	componentWidth, ok := componentByteWidth[acc.ComponentType]
	if !ok {
		return gltfAccessor{}, nil, 0, fmt.Errorf("unsupported componentType %d", acc.ComponentType)
	}
	numComponents, ok := typeComponentCount[acc.Type]
	if !ok {
		return gltfAccessor{}, nil, 0, fmt.Errorf("unsupported accessor type %q", acc.Type)
	}
	stride := view.ByteStride
	if stride == 0 {
		stride = componentWidth * numComponents
	}
	offset := view.ByteOffset + acc.ByteOffset
	data := buffers[view.Buffer][offset:]
	return acc, data, stride, nil
}

func readVec3Accessor(doc gltfDocument, buffers [][]byte, accessorIndex int) ([]core.Vec3, error) {
	acc, data, stride, err := accessorBytes(doc, buffers, accessorIndex)
	if err != nil {
		return nil, err
	}
	if acc.ComponentType != componentTypeFloat || acc.Type != "VEC3" {
		return nil, fmt.Errorf("expected float VEC3 accessor, got componentType %d type %q", acc.ComponentType, acc.Type)
	}

	out := make([]core.Vec3, acc.Count)
	for i := 0; i < acc.Count; i++ {
		base := i * stride
		x := math.Float32frombits(binary.LittleEndian.Uint32(data[base:]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(data[base+4:]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(data[base+8:]))
		out[i] = core.NewVec3(float64(x), float64(y), float64(z))
	}
	return out, nil
}

func readIndexAccessor(doc gltfDocument, buffers [][]byte, accessorIndex int) ([]int, error) {
	acc, data, stride, err := accessorBytes(doc, buffers, accessorIndex)
	if err != nil {
		return nil, err
	}
	if acc.Type != "SCALAR" {
		return nil, fmt.Errorf("expected SCALAR index accessor, got type %q", acc.Type)
	}

	out := make([]int, acc.Count)
	for i := 0; i < acc.Count; i++ {
		base := i * stride
		switch acc.ComponentType {
		case componentTypeUnsignedByte:
			out[i] = int(data[base])
		case componentTypeUnsignedShort:
			out[i] = int(binary.LittleEndian.Uint16(data[base:]))
		case componentTypeUnsignedInt:
			out[i] = int(binary.LittleEndian.Uint32(data[base:]))
		default:
			return nil, fmt.Errorf("unsupported index componentType %d", acc.ComponentType)
		}
	}
	return out, nil
}
