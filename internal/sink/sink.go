// Package sink delivers exported files to FTP, a local directory or an
// object store, selected by the scheme of the sink URL.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"smartkeiba/internal/config"
	"smartkeiba/internal/domain"
	"smartkeiba/internal/secrets"
)

// Location is a parsed sink URL.
type Location struct {
	Scheme string
	Host   string // FTP host[:port], bucket or container
	Prefix string // directory or key prefix without surrounding slashes
}

// ParseURL splits a sink URL into its location parts.
func ParseURL(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, domain.ErrConfiguration("sink_url", "parse %q: %v", raw, err)
	}
	loc := Location{Scheme: strings.ToLower(u.Scheme), Host: u.Host, Prefix: strings.Trim(u.Path, "/")}
	switch loc.Scheme {
	case "file":
		// file:///abs/path keeps its leading slash; file://rel/path is relative.
		loc.Prefix = path.Clean(u.Host + u.Path)
		loc.Host = ""
	case "ftp", "s3", "gs", "az":
		if loc.Host == "" {
			return Location{}, domain.ErrConfiguration("sink_url", "%q has no host", raw)
		}
	case "":
		return Location{}, domain.ErrConfiguration("sink_url", "%q has no scheme", raw)
	default:
		return Location{}, domain.ErrConfiguration("sink_url", "unsupported scheme %q", loc.Scheme)
	}
	return loc, nil
}

// key joins prefix and name into an object key.
func (l Location) key(name string) string {
	if l.Prefix == "" {
		return name
	}
	return path.Join(l.Prefix, name)
}

// Open builds the sink described by cfg. Credential fields may be Secret
// Manager references and are resolved through resolver.
func Open(ctx context.Context, cfg config.SinkConfig, resolver *secrets.Resolver, logger *slog.Logger) (domain.Sink, error) {
	loc, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case "ftp":
		user, err := resolver.Resolve(ctx, cfg.User)
		if err != nil {
			return nil, fmt.Errorf("ftp user: %w", err)
		}
		pass, err := resolver.Resolve(ctx, cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("ftp password: %w", err)
		}
		return NewFTP(loc, user, pass, logger), nil
	case "file":
		return NewLocal(loc.Prefix), nil
	case "s3":
		return NewS3(ctx, loc, cfg)
	case "gs":
		return NewGCS(ctx, loc, cfg.GCSKeyFile)
	case "az":
		return NewAzure(loc, cfg.AzureAccountName, cfg.AzureAccountKey)
	}
	return nil, domain.ErrConfiguration("sink_url", "unsupported scheme %q", loc.Scheme)
}

// seekable returns r as an io.ReadSeeker, buffering it when needed.
func seekable(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
