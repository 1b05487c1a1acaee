package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/render-bridge-server/pkg/core"
	"github.com/df07/render-bridge-server/pkg/geometry"
	"github.com/df07/render-bridge-server/pkg/material"
)

func quadMesh(name string, clientMesh bool) *geometry.TriangleMesh {
	vertices := []core.Vec3{
		core.NewVec3(-1, -1, 0),
		core.NewVec3(1, -1, 0),
		core.NewVec3(1, 1, 0),
		core.NewVec3(-1, 1, 0),
	}
	indices := []int{0, 1, 2, 0, 2, 3}
	return geometry.NewTriangleMesh(vertices, indices, material.NewMaterial(core.NewVec3(1, 0, 0)), name, clientMesh)
}

func TestResetClearsEverything(t *testing.T) {
	s := New()
	s.SetClientMeshes([]*geometry.TriangleMesh{quadMesh("Quad", true)})
	s.AddDefaultPointLight()
	s.HasCameraNode = true

	s.Reset()

	assert.Empty(t, s.ClientMeshes)
	assert.Empty(t, s.BaseMeshes)
	assert.Empty(t, s.Lights)
	assert.False(t, s.HasCameraNode)
	assert.Equal(t, 0, s.ObjectCount())
}

func TestBuildAndHitAcrossClientAndBaseMeshes(t *testing.T) {
	s := New()
	s.SetClientMeshes([]*geometry.TriangleMesh{quadMesh("ClientQuad", true)})
	s.SetBaseMeshes([]*geometry.TriangleMesh{quadMesh("BaseQuad", false)})
	s.Build()

	assert.Equal(t, 2, s.ObjectCount())

	ray := core.NewRay(core.NewVec3(0, 0, 5), core.NewVec3(0, 0, -1))
	hit, ok := s.Hit(ray, 0.001, 1000)
	require.True(t, ok)
	assert.InDelta(t, 5.0, hit.T, 1e-6)
}

func TestHitBeforeBuildNeverHits(t *testing.T) {
	s := New()
	s.SetClientMeshes([]*geometry.TriangleMesh{quadMesh("Quad", true)})

	ray := core.NewRay(core.NewVec3(0, 0, 5), core.NewVec3(0, 0, -1))
	_, ok := s.Hit(ray, 0.001, 1000)
	assert.False(t, ok)
}

func TestAddDefaultPointLightInstallsFixedLight(t *testing.T) {
	s := New()
	s.AddDefaultPointLight()

	require.Len(t, s.Lights, 1)
	assert.Equal(t, core.NewVec3(0, 0, 5), s.Lights[0].Position)
	assert.Equal(t, 100.0, s.Lights[0].Energy)
}
