package inference

import (
	"context"
	"fmt"
)

// shapEBackend generates untextured models directly from text. It is the
// fastest strategy and the default for "basic" mode.
type shapEBackend struct {
	client *SpaceClient
}

func (b *shapEBackend) Name() string { return BackendFastDirect }

func (b *shapEBackend) Generate(ctx context.Context, req *Request) (any, error) {
	return b.client.Predict(ctx, "/text-to-3d",
		req.Prompt,
		defaultSeed,
		defaultGuidanceScale,
		defaultInferenceSteps,
	)
}

// trellisBackend generates textured GLB models from text. Texture size is
// fixed so textures are embedded in the container rather than shipped as
// side files.
type trellisBackend struct {
	client *SpaceClient
}

func (b *trellisBackend) Name() string { return BackendTexturedDirect }

func (b *trellisBackend) Generate(ctx context.Context, req *Request) (any, error) {
	return b.client.Predict(ctx, "/generate_and_extract_glb",
		req.Prompt,
		defaultSeed,
		defaultGuidanceScale,
		defaultMeshSimplify,
		defaultTextureSize,
	)
}

// instantMeshBackend reconstructs a model from a single uploaded image.
type instantMeshBackend struct {
	client *SpaceClient
}

func (b *instantMeshBackend) Name() string { return BackendImageTo3DA }

func (b *instantMeshBackend) Generate(ctx context.Context, req *Request) (any, error) {
	remote, err := b.client.UploadFile(ctx, req.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("image upload failed: %w", err)
	}
	return b.client.Predict(ctx, "/generate",
		fileRef(remote),
		defaultSeed,
		defaultInferenceSteps,
	)
}

// hunyuanBackend is the alternate image-to-3D service.
type hunyuanBackend struct {
	client *SpaceClient
}

func (b *hunyuanBackend) Name() string { return BackendImageTo3DB }

func (b *hunyuanBackend) Generate(ctx context.Context, req *Request) (any, error) {
	remote, err := b.client.UploadFile(ctx, req.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("image upload failed: %w", err)
	}
	return b.client.Predict(ctx, "/shape_generation",
		fileRef(remote),
		defaultSeed,
		defaultInferenceSteps,
	)
}

// fileRef wraps a server-side upload path in the file reference shape the
// spaces expect.
func fileRef(path string) map[string]any {
	return map[string]any{
		"path": path,
		"meta": map[string]any{"_type": "gradio.FileData"},
	}
}
