package inference

import (
	"fmt"
	"strings"
)

// ResultKind tags the normalized shape of a backend result.
type ResultKind string

const (
	KindLocalPath ResultKind = "local_path"
	KindRemoteURL ResultKind = "remote_url"
)

// Result is the normalized form of a backend's raw return value.
type Result struct {
	Kind  ResultKind
	Value string
}

// resultKeys is the fixed priority order for map-shaped results.
var resultKeys = []string{"value", "path", "name", "file"}

// NormalizeResult reduces the heterogeneous shapes the remote services
// return to a tagged path-or-URL. Trial order is fixed: plain string,
// list first element, then map keys value/path/name/file. Anything else
// fails loudly.
func NormalizeResult(raw any) (Result, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return Result{}, fmt.Errorf("backend returned an empty path")
		}
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return Result{Kind: KindRemoteURL, Value: v}, nil
		}
		return Result{Kind: KindLocalPath, Value: v}, nil

	case []any:
		if len(v) == 0 {
			return Result{}, fmt.Errorf("backend returned an empty list")
		}
		return NormalizeResult(v[0])

	case map[string]any:
		for _, key := range resultKeys {
			if inner, ok := v[key]; ok && inner != nil {
				return NormalizeResult(inner)
			}
		}
		return Result{}, fmt.Errorf("backend returned a map with none of %v", resultKeys)

	default:
		return Result{}, fmt.Errorf("unrecognized backend result shape: %T", raw)
	}
}
