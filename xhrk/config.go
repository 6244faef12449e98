package xhrk

// Config for xhrshim
type Config struct {
	BaseURL             string   `toml:"base_url"`              // relative request URLs resolve against this
	Namespace           string   `toml:"namespace"`             // install guard key
	BlockPatterns       []string `toml:"block_patterns"`        // extra URL substrings to drop
	DisableDefaultBlock bool     `toml:"disable_default_block"` // don't add the built in ad network rule
	TimeoutMS           int      `toml:"timeout_ms"`            // default request timeout, 0 for none
	MaxResponseSize     int64    `toml:"max_response_size"`     // bodies are truncated past this, 0 for default
	UserAgent           string   `toml:"user_agent"`
	DataPath            string   `toml:"data_path"` // capture store directory
	LogLevel            string   `toml:"log_level"`
}

// DefaultMaxResponseSize of a response body
const DefaultMaxResponseSize int64 = 32 << 20

// DefaultNamespace used to guard installation
const DefaultNamespace = "xhrshim"
