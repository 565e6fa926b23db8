package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as an annotated
// summary to w. This powers "config show", giving users visibility into
// the values in effect after defaults, file, env, and flags are applied.
func RenderEffective(cfg *Config, path string, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", path)

	ew.printf("[github]\n")
	ew.printf("  api_url          = %q\n", cfg.GitHub.APIURL)
	ew.printf("  raw_url          = %q\n", cfg.GitHub.RawURL)
	ew.printf("  client_id        = %q\n", cfg.GitHub.ClientID)
	ew.printf("  token_file       = %q\n\n", TokenPath(cfg))

	ew.printf("[content]\n")
	ew.printf("  placeholder_name = %q\n", cfg.Content.PlaceholderName)
	ew.printf("  commit_prefix    = %q\n\n", cfg.Content.CommitPrefix)

	ew.printf("[cache]\n")
	ew.printf("  blob_cache       = %t\n", cfg.Cache.BlobCache)
	ew.printf("  blob_cache_path  = %q\n", BlobCachePath(cfg))
	ew.printf("  max_blob_size    = %q\n", cfg.Cache.MaxBlobSize)
	ew.printf("  max_cache_size   = %q\n\n", cfg.Cache.MaxCacheSize)

	ew.printf("[logging]\n")
	ew.printf("  log_level        = %q\n", cfg.Logging.LogLevel)
	ew.printf("  log_format       = %q\n\n", cfg.Logging.LogFormat)

	ew.printf("[network]\n")
	ew.printf("  connect_timeout  = %q\n", cfg.Network.ConnectTimeout)
	ew.printf("  data_timeout     = %q\n", cfg.Network.DataTimeout)
	ew.printf("  user_agent       = %q\n\n", cfg.Network.UserAgent)

	ew.printf("[mount]\n")
	ew.printf("  allow_other      = %t\n", cfg.Mount.AllowOther)
	ew.printf("  read_only        = %t\n", cfg.Mount.ReadOnly)
	ew.printf("  stream_threshold = %q\n", cfg.Mount.StreamThreshold)
	ew.printf("  attr_timeout     = %q\n", cfg.Mount.AttrTimeout)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
