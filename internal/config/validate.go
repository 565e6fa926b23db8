package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validation range constants.
const (
	minConnectTimeout = 1 * time.Second
	minDataTimeout    = 5 * time.Second
	maxAttrTimeout    = 10 * time.Minute
)

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateGitHub(&cfg.GitHub)...)
	errs = append(errs, validateContent(&cfg.Content)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateMount(&cfg.Mount)...)

	return errors.Join(errs...)
}

func validateGitHub(g *GitHubConfig) []error {
	var errs []error

	errs = append(errs, validateURL("api_url", g.APIURL)...)
	errs = append(errs, validateURL("raw_url", g.RawURL)...)

	return errs
}

func validateURL(field, value string) []error {
	u, err := url.Parse(value)
	if err != nil {
		return []error{fmt.Errorf("%s: %w", field, err)}
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return []error{fmt.Errorf("%s: must be an http or https URL, got %q", field, value)}
	}

	if u.Host == "" {
		return []error{fmt.Errorf("%s: missing host in %q", field, value)}
	}

	return nil
}

func validateContent(c *ContentConfig) []error {
	var errs []error

	name := c.PlaceholderName

	switch {
	case name == "":
		errs = append(errs, errors.New("placeholder_name: must not be empty"))
	case strings.ContainsRune(name, '/'), name == ".", name == "..":
		errs = append(errs, fmt.Errorf("placeholder_name: must be a plain file name, got %q", name))
	}

	if strings.ContainsAny(c.CommitPrefix, "\n\r") {
		errs = append(errs, errors.New("commit_prefix: must be a single line"))
	}

	return errs
}

func validateCache(c *CacheConfig) []error {
	var errs []error

	errs = append(errs, validateSize("max_blob_size", c.MaxBlobSize)...)
	errs = append(errs, validateSize("max_cache_size", c.MaxCacheSize)...)

	return errs
}

func validateSize(field, value string) []error {
	if _, err := ParseSize(value); err != nil {
		return []error{fmt.Errorf("%s: %w", field, err)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("data_timeout", n.DataTimeout, minDataTimeout)...)

	return errs
}

func validateMount(m *MountConfig) []error {
	var errs []error

	errs = append(errs, validateSize("stream_threshold", m.StreamThreshold)...)

	d, err := time.ParseDuration(m.AttrTimeout)

	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("attr_timeout: invalid duration %q: %w", m.AttrTimeout, err))
	case d < 0 || d > maxAttrTimeout:
		errs = append(errs, fmt.Errorf("attr_timeout: must be between 0 and %s, got %s", maxAttrTimeout, d))
	}

	return errs
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

// Durations parses the validated network and mount durations. Call only
// on a Config that passed Validate.
func (c *Config) Durations() (connect, data, attr time.Duration) {
	connect, _ = time.ParseDuration(c.Network.ConnectTimeout)
	data, _ = time.ParseDuration(c.Network.DataTimeout)
	attr, _ = time.ParseDuration(c.Mount.AttrTimeout)

	return connect, data, attr
}

// Sizes parses the validated size fields. Call only on a Config that
// passed Validate.
func (c *Config) Sizes() (maxBlob, maxCache, streamThreshold int64) {
	maxBlob, _ = ParseSize(c.Cache.MaxBlobSize)
	maxCache, _ = ParseSize(c.Cache.MaxCacheSize)
	streamThreshold, _ = ParseSize(c.Mount.StreamThreshold)

	return maxBlob, maxCache, streamThreshold
}
