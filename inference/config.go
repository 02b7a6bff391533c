package inference

import "time"

// SpaceConfig configures one remote inference space.
type SpaceConfig struct {
	Space    string        `yaml:"space"`    // owner/name identifier, or a full base URL
	Timeout  time.Duration `yaml:"timeout"`  // ceiling for one generation call
	Disabled bool          `yaml:"disabled"` // skip initialization entirely
}

// Config configures the whole backend pool.
type Config struct {
	// Token authenticates against the remote services. Initialization is
	// attempted anonymously first so anonymous-friendly services do not
	// consume token quota.
	Token string `yaml:"token"`

	FastDirect     SpaceConfig `yaml:"fast_direct"`
	TexturedDirect SpaceConfig `yaml:"textured_direct"`
	ImageTo3DA     SpaceConfig `yaml:"image_to_3d_a"`
	ImageTo3DB     SpaceConfig `yaml:"image_to_3d_b"`

	// InitRetries bounds per-handle initialization attempts. InitRetryDelay
	// is the first backoff delay; it doubles per attempt.
	InitRetries    int           `yaml:"init_retries"`
	InitRetryDelay time.Duration `yaml:"init_retry_delay"`
}

// DefaultConfig returns the production backend set.
func DefaultConfig() Config {
	return Config{
		FastDirect:     SpaceConfig{Space: "hysts/Shap-E", Timeout: 120 * time.Second},
		TexturedDirect: SpaceConfig{Space: "JeffreyXiang/TRELLIS", Timeout: 300 * time.Second},
		ImageTo3DA:     SpaceConfig{Space: "TencentARC/InstantMesh", Timeout: 300 * time.Second},
		ImageTo3DB:     SpaceConfig{Space: "tencent/Hunyuan3D-2", Timeout: 300 * time.Second},
		InitRetries:    3,
	}
}

// Fixed per-strategy generation constants. These are not user-controlled;
// they bound cost and latency on the remote services.
const (
	defaultSeed           = 0
	defaultGuidanceScale  = 15.0
	defaultInferenceSteps = 75
	defaultMeshSimplify   = 0.95
	defaultTextureSize    = 1024
)
