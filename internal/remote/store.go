// Package remote pushes audio files and JSON documents to object storage.
// Every method reports success as a boolean and logs the underlying
// error; callers must check the result.
package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/franz/ridgemont-catalog/internal/util"
)

// Store is a key-addressed object store
type Store interface {
	// Exists reports whether key is present. When the store cannot be
	// reached it answers true so callers never overwrite blindly.
	Exists(ctx context.Context, key string) bool
	UploadFile(ctx context.Context, path, key, contentType string) bool
	UploadJSON(ctx context.Context, v interface{}, key string) bool
	// GetJSON decodes key into out. It returns false when the object is
	// missing or unreadable.
	GetJSON(ctx context.Context, key string, out interface{}) bool
	String() string
}

// Backends
const (
	BackendR2  = "r2"
	BackendDir = "dir"
)

// DefaultBucket is used when no bucket name is configured
const DefaultBucket = "ridgemont-studio"

// Config selects and configures a backend
type Config struct {
	Backend string `mapstructure:"backend"`

	// Dir is the root of the filesystem backend
	Dir string `mapstructure:"dir"`

	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	// Endpoint overrides the host derived from AccountID
	Endpoint string `mapstructure:"endpoint"`
}

// New builds the store named by cfg.Backend
func New(cfg *Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendR2, "":
		return NewS3Store(cfg)
	case BackendDir:
		return NewDirStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("%w: unknown remote backend %q", util.ErrInvalidConfig, cfg.Backend)
	}
}

// cleanKey rejects keys that could escape the bucket root
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty object key", util.ErrValidation)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return "", fmt.Errorf("%w: invalid object key %q", util.ErrValidation, key)
		}
	}
	return key, nil
}
