// Package inference provides clients for the remote 3D generation
// services and the pool that owns them.
package inference

import (
	"context"
)

// Backend names, one per generation strategy.
const (
	BackendFastDirect     = "fast-direct"     // text -> untextured 3D, seconds
	BackendTexturedDirect = "textured-direct" // text -> textured 3D, slower
	BackendImageTo3DA     = "image-to-3d-a"   // single image -> 3D
	BackendImageTo3DB     = "image-to-3d-b"   // single image -> 3D, alternate service
)

// Backend is a live handle to one remote generation strategy.
//
// Generate returns the raw, loosely-typed result the remote service
// produced: a path or URL string, a list whose first element is the path,
// or a map keyed by value/path/name/file. Callers normalize it with
// NormalizeResult.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req *Request) (any, error)
}

// Request carries the input for one generation call.
type Request struct {
	Prompt    string // text description, used by the text backends
	ImagePath string // local path of an uploaded image, used by the image backends
}
