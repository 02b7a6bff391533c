package gltf

import (
	"fmt"

	"go.uber.org/zap"
)

// NormalizeFile rewrites the scene container at path in place: injects a
// fallback material when the scene has none, normalizes every material for
// AR visibility, and logs structure diagnostics.
func NormalizeFile(path string, cfg BrightnessConfig, logger *zap.Logger) error {
	doc, err := Load(path)
	if err != nil {
		return fmt.Errorf("failed to load scene: %w", err)
	}

	AddBasicMaterial(doc, logger)
	NormalizeMaterials(doc, cfg, logger)
	Verify(doc, logger)

	if err := doc.Save(path); err != nil {
		return fmt.Errorf("failed to save normalized scene: %w", err)
	}
	return nil
}
