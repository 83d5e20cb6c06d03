// Package backend provides the object stores arrays are persisted to.
//
// Keys are slash separated paths relative to the backend root. A Put is
// atomic: readers observe either the previous object or the complete new
// one, never a partial write.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajitpratap0/arraystore/pkg/errors"
)

// Kind selects a backend implementation.
type Kind string

const (
	// File stores objects on the local filesystem under Root.
	File Kind = "file"
	// Mem stores objects in process memory. Contents are lost on exit.
	Mem Kind = "mem"
	// S3 stores objects in an S3 bucket.
	S3 Kind = "s3"
	// GCS stores objects in a Google Cloud Storage bucket.
	GCS Kind = "gcs"
)

// Backend is a flat key/value object store.
type Backend interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte) error
	// Get returns the object stored under key. A missing key returns an
	// error matching errors.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists reports whether key holds an object.
	Exists(ctx context.Context, key string) (bool, error)
	// List returns every key beginning with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes every key beginning with prefix.
	Delete(ctx context.Context, prefix string) error
	// Close releases backend resources.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Kind            Kind   `yaml:"backend" json:"backend" mapstructure:"backend"`
	Root            string `yaml:"root" json:"root" mapstructure:"root"`
	Bucket          string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix" json:"prefix" mapstructure:"prefix"`
	Region          string `yaml:"region" json:"region" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
}

// Validate checks that the fields required by Kind are set.
func (c *Config) Validate() error {
	switch c.Kind {
	case File:
		if c.Root == "" {
			return errors.New(errors.ErrorTypeConfig, "file backend requires root")
		}
	case Mem, "":
	case S3, GCS:
		if c.Bucket == "" {
			return errors.Newf(errors.ErrorTypeConfig, "%s backend requires bucket", c.Kind)
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown backend %q", c.Kind)
	}
	return nil
}

// Open creates the backend described by cfg.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case File:
		return NewFile(cfg.Root)
	case S3:
		return NewS3(ctx, cfg)
	case GCS:
		return NewGCS(ctx, cfg)
	default:
		return NewMem(), nil
	}
}

// Join joins key elements with slashes, dropping empty elements.
func Join(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		if e = strings.Trim(e, "/"); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}

func notFound(key string) error {
	return errors.Newf(errors.ErrorTypeNotFound, "object %q not found", key).WithDetail("key", key)
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("invalid object key %q", key))
	}
	return nil
}
