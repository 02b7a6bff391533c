package generation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/promptar/promptar/inference"
	"github.com/promptar/promptar/internal/tlsutil"
	"github.com/promptar/promptar/types"
)

func newFetchClient(timeout time.Duration) *http.Client {
	return tlsutil.SecureHTTPClient(timeout)
}

// materialize turns a normalized backend result into a managed artifact
// file named after the record id. Remote URLs are downloaded; local paths
// are verified and copied, never moved, so the backend's own staging area
// stays intact.
func (o *Orchestrator) materialize(ctx context.Context, result inference.Result, id string) (string, error) {
	if err := os.MkdirAll(o.cfg.StorageDir, 0o755); err != nil {
		return "", artifactErr("failed to create storage directory", err)
	}
	dst := filepath.Join(o.cfg.StorageDir, id+".glb")

	switch result.Kind {
	case inference.KindRemoteURL:
		if err := o.download(ctx, result.Value, dst); err != nil {
			return "", err
		}
	case inference.KindLocalPath:
		if err := copyFile(result.Value, dst); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown result kind: %s", result.Kind)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return "", artifactErr("generated artifact missing after materialization", err)
	}
	if info.Size() == 0 {
		return "", artifactErr("generated artifact is empty", nil)
	}
	return dst, nil
}

func (o *Orchestrator) download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return artifactErr("failed to create download request", err)
	}

	resp, err := o.fetch.Do(req)
	if err != nil {
		return fmt.Errorf("result download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("result download failed: status=%d", resp.StatusCode)
	}

	return writeAtomic(dst, resp.Body)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backend reported a file that does not exist: %s", src)
		}
		return artifactErr("failed to open backend result file", err)
	}
	defer in.Close()

	return writeAtomic(dst, in)
}

// writeAtomic stages into a temp file in the target directory and renames
// into place, so a concurrent download never observes a partial artifact.
func writeAtomic(dst string, src io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".artifact-*")
	if err != nil {
		return artifactErr("failed to stage artifact", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return artifactErr("failed to write artifact", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return artifactErr("failed to finish artifact", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return artifactErr("failed to place artifact", err)
	}
	return nil
}

func artifactErr(msg string, cause error) *types.Error {
	if cause != nil {
		cause = fmt.Errorf("%s: %w", msg, cause)
	} else {
		cause = fmt.Errorf("%s", msg)
	}
	return types.NewError(types.ErrArtifactIO, msgArtifact).
		WithHTTPStatus(http.StatusInternalServerError).
		WithCause(cause)
}
