package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"contactbook/internal/config"
)

// AvatarStore uploads an object and returns the URL it is served from.
type AvatarStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

func New(ctx context.Context, cfg config.StorageConfig) (AvatarStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "minio":
		return NewMinioStore(ctx, cfg)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// splitEndpoint accepts both "host:port" and "http(s)://host:port" forms.
func splitEndpoint(endpoint string, useSSL bool) (host string, secure bool, err error) {
	if !strings.HasPrefix(endpoint, "http") {
		return endpoint, useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint: %w", err)
	}
	return u.Host, u.Scheme == "https", nil
}

// escapePath escapes each segment of an object key for use in a URL path.
func escapePath(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func objectURL(cfg config.StorageConfig, key string) string {
	key = escapePath(key)
	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		if cfg.Endpoint == "" {
			return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", cfg.BucketAvatars, cfg.Region, key)
		}
		host, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
		if err != nil {
			host = cfg.Endpoint
		}
		scheme := "http"
		if secure {
			scheme = "https"
		}
		base = scheme + "://" + host
	}
	return base + "/" + url.PathEscape(cfg.BucketAvatars) + "/" + key
}
