package config

// Default values for configuration options: layer 0 of the override
// chain, used when no config file exists.
const (
	defaultAPIURL          = "https://api.github.com/"
	defaultRawURL          = "https://raw.githubusercontent.com/"
	defaultPlaceholderName = ".gitkeep"
	defaultCommitPrefix    = "ghdrive"
	defaultMaxBlobSize     = "8MiB"
	defaultMaxCacheSize    = "512MiB"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultConnectTimeout  = "10s"
	defaultDataTimeout     = "60s"
	defaultStreamThreshold = "4MiB"
	defaultAttrTimeout     = "5s"
)

// DefaultConfig returns a Config populated with all default values.
// Decoding starts from it, so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		GitHub:  defaultGitHubConfig(),
		Content: defaultContentConfig(),
		Cache:   defaultCacheConfig(),
		Logging: defaultLoggingConfig(),
		Network: defaultNetworkConfig(),
		Mount:   defaultMountConfig(),
	}
}

func defaultGitHubConfig() GitHubConfig {
	return GitHubConfig{
		APIURL: defaultAPIURL,
		RawURL: defaultRawURL,
	}
}

func defaultContentConfig() ContentConfig {
	return ContentConfig{
		PlaceholderName: defaultPlaceholderName,
		CommitPrefix:    defaultCommitPrefix,
	}
}

func defaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobCache:    true,
		MaxBlobSize:  defaultMaxBlobSize,
		MaxCacheSize: defaultMaxCacheSize,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ConnectTimeout: defaultConnectTimeout,
		DataTimeout:    defaultDataTimeout,
	}
}

func defaultMountConfig() MountConfig {
	return MountConfig{
		StreamThreshold: defaultStreamThreshold,
		AttrTimeout:     defaultAttrTimeout,
	}
}
