package config

// Config is the root of the declarative configuration document: the target
// server, layered defaults, and the desired resource collections.
type Config struct {
	Server    Server         `yaml:"server"`
	Defaults  Defaults       `yaml:"defaults,omitempty"`
	Resources map[string]any `yaml:"resources,omitempty"`
}

type Server struct {
	BaseURL        string            `yaml:"base-url"`
	Auth           *Auth             `yaml:"auth,omitempty"`
	TLS            *TLS              `yaml:"tls,omitempty"`
	DefaultHeaders map[string]string `yaml:"default-headers,omitempty"`
	TimeoutSeconds int               `yaml:"timeout-seconds,omitempty"`

	// RequestsPerSecond caps the client-side request rate. Zero disables
	// throttling.
	RequestsPerSecond float64 `yaml:"requests-per-second,omitempty"`
}

type Auth struct {
	BasicAuth    *BasicAuth       `yaml:"basic-auth,omitempty"`
	BearerToken  *BearerTokenAuth `yaml:"bearer-token,omitempty"`
	CustomHeader *HeaderTokenAuth `yaml:"custom-header,omitempty"`
}

type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type BearerTokenAuth struct {
	Token string `yaml:"token"`
}

type HeaderTokenAuth struct {
	Header string `yaml:"header"`
	Token  string `yaml:"token"`
}

type TLS struct {
	InsecureSkipVerify bool   `yaml:"insecure-skip-verify,omitempty"`
	CACertFile         string `yaml:"ca-cert-file,omitempty"`
	ClientCertFile     string `yaml:"client-cert-file,omitempty"`
	ClientKeyFile      string `yaml:"client-key-file,omitempty"`
}

// Defaults holds the layered default documents. Global merges into every
// item; Type keys hosted/proxy/group and Format keys the repository format,
// both applying to repository types only. The item document itself is the
// highest-precedence layer.
type Defaults struct {
	Global map[string]any            `yaml:"global,omitempty"`
	Type   map[string]map[string]any `yaml:"type,omitempty"`
	Format map[string]map[string]any `yaml:"format,omitempty"`
}
