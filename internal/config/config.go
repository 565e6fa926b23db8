// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for ghdrive. Values are layered:
// defaults -> config file -> environment -> CLI flags.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	GitHub  GitHubConfig  `toml:"github"`
	Content ContentConfig `toml:"content"`
	Cache   CacheConfig   `toml:"cache"`
	Logging LoggingConfig `toml:"logging"`
	Network NetworkConfig `toml:"network"`
	Mount   MountConfig   `toml:"mount"`
}

// GitHubConfig selects the API endpoints and credentials. api_url points at
// a GitHub Enterprise Server instance when not using github.com.
type GitHubConfig struct {
	APIURL    string `toml:"api_url"`
	RawURL    string `toml:"raw_url"`
	ClientID  string `toml:"client_id"`
	TokenFile string `toml:"token_file"`
}

// ContentConfig controls what ghdrive writes into repositories.
type ContentConfig struct {
	PlaceholderName string `toml:"placeholder_name"`
	CommitPrefix    string `toml:"commit_prefix"`
}

// CacheConfig controls the on-disk blob cache. Sizes are strings such as
// "512MiB"; see ParseSize.
type CacheConfig struct {
	BlobCache    bool   `toml:"blob_cache"`
	BlobCacheDir string `toml:"blob_cache_dir"`
	MaxBlobSize  string `toml:"max_blob_size"`
	MaxCacheSize string `toml:"max_cache_size"`
}

// LoggingConfig controls log output: level and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// MountConfig controls the FUSE mount.
type MountConfig struct {
	AllowOther      bool   `toml:"allow_other"`
	ReadOnly        bool   `toml:"read_only"`
	StreamThreshold string `toml:"stream_threshold"`
	AttrTimeout     string `toml:"attr_timeout"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from an explicit zero value.
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	LogLevel   *string // derived from --verbose / --quiet / --debug
	ReadOnly   *bool   // mount --read-only
}
