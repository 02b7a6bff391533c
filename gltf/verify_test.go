package gltf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestVerify_Counts(t *testing.T) {
	doc := testDoc(
		map[string]any{
			"pbrMetallicRoughness": map[string]any{
				"baseColorTexture": map[string]any{"index": 0.0},
			},
		},
		map[string]any{
			"pbrMetallicRoughness": map[string]any{},
		},
	)
	doc.JSON["images"] = []any{map[string]any{}}
	doc.JSON["textures"] = []any{map[string]any{"source": 0.0}}
	doc.JSON["meshes"] = []any{
		map[string]any{"primitives": []any{
			map[string]any{"attributes": map[string]any{"POSITION": 0.0}},
		}},
	}

	stats := Verify(doc, zap.NewNop())

	assert.Equal(t, 1, stats.Images)
	assert.Equal(t, 1, stats.Textures)
	assert.Equal(t, 2, stats.Materials)
	assert.Equal(t, 1, stats.Meshes)
	assert.Equal(t, 1, stats.MaterialsWithTextures)
	assert.False(t, stats.HasVertexColors)
	assert.True(t, stats.HasTexturedMaterials())
}

// A material without a linked texture must not count as textured, even
// after fallback injection.
func TestVerify_FallbackMaterialIsNotTextured(t *testing.T) {
	doc := testDoc()
	doc.JSON["meshes"] = []any{
		map[string]any{"primitives": []any{
			map[string]any{"attributes": map[string]any{"POSITION": 0.0}},
		}},
	}

	AddBasicMaterial(doc, zap.NewNop())
	stats := Verify(doc, zap.NewNop())

	assert.Equal(t, 1, stats.Materials)
	assert.Equal(t, 0, stats.MaterialsWithTextures)
	assert.False(t, stats.HasTexturedMaterials())
}

func TestVerify_VertexColorsWithoutTexturesWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	doc := testDoc(map[string]any{})
	doc.JSON["meshes"] = []any{
		map[string]any{"primitives": []any{
			map[string]any{"attributes": map[string]any{
				"POSITION": 0.0,
				"COLOR_0":  1.0,
			}},
		}},
	}

	stats := Verify(doc, logger)

	assert.True(t, stats.HasVertexColors)
	assert.Equal(t, 0, stats.Textures)
	assert.Equal(t, 1, logs.FilterMessageSnippet("vertex colors").Len())
}

func TestVerify_VertexColorsWithTexturesDoesNotWarn(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	doc := testDoc(map[string]any{})
	doc.JSON["textures"] = []any{map[string]any{"source": 0.0}}
	doc.JSON["meshes"] = []any{
		map[string]any{"primitives": []any{
			map[string]any{"attributes": map[string]any{"COLOR_0": 1.0}},
		}},
	}

	Verify(doc, logger)

	assert.Equal(t, 0, logs.Len())
}

func TestNormalizeFile_InPlace(t *testing.T) {
	path := t.TempDir() + "/model.glb"
	doc := testDoc(map[string]any{
		"pbrMetallicRoughness": map[string]any{"metallicFactor": 1.0},
	})
	if err := doc.Save(path); err != nil {
		t.Fatal(err)
	}

	if err := NormalizeFile(path, DefaultBrightnessConfig(), zap.NewNop()); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	pbr := reloaded.Materials()[0]["pbrMetallicRoughness"].(map[string]any)
	assert.Equal(t, 0.0, pbr["metallicFactor"])
	assert.NotNil(t, reloaded.Materials()[0]["emissiveFactor"])
}
