package loaders

import (
	"fmt"
	"strconv"

	"github.com/df07/render-bridge-server/pkg/core"
	"github.com/df07/render-bridge-server/pkg/geometry"
	"github.com/df07/render-bridge-server/pkg/material"
)

// BuildBaseMeshes converts every "trianglemesh" Shape statement in a parsed
// PBRT scene (top-level and inside AttributeBegin/AttributeEnd blocks) into
// a geometry.TriangleMesh, for use as the optional base scene an operator
// configures at startup (--blend_file, §6). Other shape types are skipped.
// These meshes are never part of the "ClientObjects" collection.
func BuildBaseMeshes(scene *PBRTScene) ([]*geometry.TriangleMesh, error) {
	shapes := append([]PBRTStatement(nil), scene.Shapes...)
	for _, attr := range scene.Attributes {
		shapes = append(shapes, attr.Shapes...)
	}

	var meshes []*geometry.TriangleMesh
	for i, shape := range shapes {
		if shape.Subtype != "trianglemesh" {
			continue
		}
		mesh, err := buildTriangleMeshShape(shape, i)
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

func buildTriangleMeshShape(shape PBRTStatement, index int) (*geometry.TriangleMesh, error) {
	points, err := parseFloatList(shape.Parameters["P"].Values)
	if err != nil {
		return nil, err
	}
	if len(points)%3 != 0 {
		return nil, fmt.Errorf("trianglemesh point3 P has %d floats, not a multiple of 3", len(points))
	}

	vertices := make([]core.Vec3, len(points)/3)
	for i := 0; i < len(vertices); i++ {
		vertices[i] = core.NewVec3(points[i*3], points[i*3+1], points[i*3+2])
	}

	indices, err := parseIntList(shape.Parameters["indices"].Values)
	if err != nil {
		return nil, err
	}

	mat := material.NewMaterial(core.NewVec3(0.7, 0.7, 0.7))
	if rgb, ok := shape.GetRGBParam("reflectance"); ok {
		mat = material.NewMaterial(*rgb)
	}

	return geometry.NewTriangleMesh(vertices, indices, mat, fmt.Sprintf("BaseMesh%d", index), false), nil
}

func parseFloatList(values []string) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", v, err)
		}
		out[i] = f
	}
	return out, nil
}

func parseIntList(values []string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", v, err)
		}
		out[i] = n
	}
	return out, nil
}
