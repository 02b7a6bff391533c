package gltf

import (
	"go.uber.org/zap"
)

// BrightnessConfig holds the material normalization thresholds and targets.
//
// The delivery context is an AR overlay with no controllable light rig, so
// materials are pushed toward matte, non-metallic, self-lit surfaces.
type BrightnessConfig struct {
	MetallicThreshold float64 `yaml:"metallic_threshold"` // metallicFactor above this is clamped down
	MetallicTarget    float64 `yaml:"metallic_target"`    // clamp target for metallic materials
	RoughnessMin      float64 `yaml:"roughness_min"`      // floor for roughnessFactor
	BaseColorBoost    float64 `yaml:"base_color_boost"`   // RGB multiplier, clamped to 1.0 per channel
	EmissiveBase      float64 `yaml:"emissive_base"`      // glow added to every channel
	EmissiveMax       float64 `yaml:"emissive_max"`       // per-channel emissive ceiling
}

// DefaultBrightnessConfig returns the production thresholds.
func DefaultBrightnessConfig() BrightnessConfig {
	return BrightnessConfig{
		MetallicThreshold: 0.1,
		MetallicTarget:    0.0,
		RoughnessMin:      0.9,
		BaseColorBoost:    1.5,
		EmissiveBase:      0.3,
		EmissiveMax:       0.5,
	}
}

// NormalizeMaterials rewrites every material in the document for AR
// visibility.
//
// Repeated application converges: the color boost keeps scaling channels
// until they saturate at the clamp, so a second pass still brightens but a
// saturated document is a fixed point. Callers should apply it once per
// serving.
func NormalizeMaterials(doc *Document, cfg BrightnessConfig, logger *zap.Logger) {
	for i, material := range doc.Materials() {
		if pbr, ok := material["pbrMetallicRoughness"].(map[string]any); ok {
			normalizePBR(i, pbr, cfg, logger)
		}

		// A minimum emissive glow guarantees visibility independent of
		// scene lighting.
		emissive, ok := floatSlice(material["emissiveFactor"])
		if !ok || len(emissive) < 3 {
			material["emissiveFactor"] = []any{cfg.EmissiveBase, cfg.EmissiveBase, cfg.EmissiveBase}
			logger.Debug("added emissiveFactor",
				zap.Int("material", i),
				zap.Float64("glow", cfg.EmissiveBase),
			)
			continue
		}
		boosted := make([]any, 3)
		for c := 0; c < 3; c++ {
			boosted[c] = minf(cfg.EmissiveMax, emissive[c]+cfg.EmissiveBase)
		}
		material["emissiveFactor"] = boosted
	}
}

func normalizePBR(index int, pbr map[string]any, cfg BrightnessConfig, logger *zap.Logger) {
	// High metallic factors mirror the environment and render near-black
	// without strong lighting.
	if metallic, ok := pbr["metallicFactor"].(float64); ok && metallic > cfg.MetallicThreshold {
		pbr["metallicFactor"] = cfg.MetallicTarget
		logger.Debug("clamped metallicFactor",
			zap.Int("material", index),
			zap.Float64("from", metallic),
			zap.Float64("to", cfg.MetallicTarget),
		)
	}

	// Low roughness darkens under simple lighting through specular loss.
	if roughness, ok := pbr["roughnessFactor"].(float64); ok && roughness < cfg.RoughnessMin {
		pbr["roughnessFactor"] = cfg.RoughnessMin
		logger.Debug("raised roughnessFactor",
			zap.Int("material", index),
			zap.Float64("min", cfg.RoughnessMin),
		)
	}

	baseColor, ok := floatSlice(pbr["baseColorFactor"])
	if !ok || len(baseColor) < 3 {
		pbr["baseColorFactor"] = []any{1.0, 1.0, 1.0, 1.0}
		logger.Debug("added baseColorFactor", zap.Int("material", index))
		return
	}
	alpha := 1.0
	if len(baseColor) > 3 {
		alpha = baseColor[3]
	}
	pbr["baseColorFactor"] = []any{
		minf(1.0, baseColor[0]*cfg.BaseColorBoost),
		minf(1.0, baseColor[1]*cfg.BaseColorBoost),
		minf(1.0, baseColor[2]*cfg.BaseColorBoost),
		alpha,
	}
}

// AddBasicMaterial injects a neutral fallback material when the scene has
// none, and assigns it to every primitive without a material reference, so
// the artifact never renders fully white/undefined.
func AddBasicMaterial(doc *Document, logger *zap.Logger) bool {
	if len(doc.Materials()) > 0 {
		return false
	}

	fallback := map[string]any{
		"name": "fallback",
		"pbrMetallicRoughness": map[string]any{
			"baseColorFactor": []any{0.5, 0.5, 0.5, 1.0},
			"metallicFactor":  0.0,
			"roughnessFactor": 0.5,
		},
	}
	doc.JSON["materials"] = []any{fallback}

	assigned := 0
	for _, mesh := range doc.Meshes() {
		for _, prim := range objectSlice(mesh["primitives"]) {
			if _, has := prim["material"]; !has {
				prim["material"] = 0.0
				assigned++
			}
		}
	}

	logger.Info("injected fallback material",
		zap.Int("primitives_assigned", assigned),
	)
	return true
}

func floatSlice(v any) ([]float64, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(arr))
	for _, item := range arr {
		f, ok := item.(float64)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
