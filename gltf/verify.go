package gltf

import (
	"go.uber.org/zap"
)

// Stats summarizes the structure of a scene for diagnostics.
type Stats struct {
	Images                int  `json:"images"`
	Textures              int  `json:"textures"`
	Materials             int  `json:"materials"`
	Meshes                int  `json:"meshes"`
	MaterialsWithTextures int  `json:"materials_with_textures"`
	HasVertexColors       bool `json:"has_vertex_colors"`
}

// HasTexturedMaterials reports whether at least one material actually
// links a base color texture. A material without a linked texture does not
// count as textured.
func (s Stats) HasTexturedMaterials() bool {
	return s.MaterialsWithTextures > 0
}

// Verify counts scene resources and logs a warning for combinations the
// AR viewer cannot render. Vertex colors without any texture render as
// untextured geometry there.
func Verify(doc *Document, logger *zap.Logger) Stats {
	stats := Stats{
		Images:    doc.CountOf("images"),
		Textures:  doc.CountOf("textures"),
		Materials: len(doc.Materials()),
		Meshes:    len(doc.Meshes()),
	}

	for _, material := range doc.Materials() {
		pbr, ok := material["pbrMetallicRoughness"].(map[string]any)
		if !ok {
			continue
		}
		if _, ok := pbr["baseColorTexture"].(map[string]any); ok {
			stats.MaterialsWithTextures++
		}
	}

	for _, mesh := range doc.Meshes() {
		for _, prim := range objectSlice(mesh["primitives"]) {
			attrs, ok := prim["attributes"].(map[string]any)
			if !ok {
				continue
			}
			if _, ok := attrs["COLOR_0"]; ok {
				stats.HasVertexColors = true
			}
		}
	}

	if stats.HasVertexColors && stats.Textures == 0 {
		logger.Warn("scene uses vertex colors without textures, viewer will render it untextured",
			zap.Int("meshes", stats.Meshes),
			zap.Int("materials", stats.Materials),
		)
	}

	logger.Debug("scene structure",
		zap.Int("images", stats.Images),
		zap.Int("textures", stats.Textures),
		zap.Int("materials", stats.Materials),
		zap.Int("meshes", stats.Meshes),
		zap.Int("materials_with_textures", stats.MaterialsWithTextures),
		zap.Bool("has_vertex_colors", stats.HasVertexColors),
	)

	return stats
}
