package backend

import (
	"context"
	stderrors "errors"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/arraystore/pkg/errors"
)

// GCSBackend stores objects in one Google Cloud Storage bucket below an
// optional prefix.
type GCSBackend struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// NewGCS connects to cfg.Bucket, using cfg.CredentialsFile when set and
// application default credentials otherwise.
func NewGCS(ctx context.Context, cfg Config) (*GCSBackend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to initialize GCS client")
	}
	return &GCSBackend{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (b *GCSBackend) key(key string) string {
	return Join(b.prefix, key)
}

// Put writes through a storage.Writer. The object becomes visible only when
// the writer closes successfully.
func (b *GCSBackend) Put(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	w := b.bucket.Object(b.key(key)).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to write to GCS").WithDetail("key", key)
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close GCS writer").WithDetail("key", key)
	}
	return nil
}

func (b *GCSBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	r, err := b.bucket.Object(b.key(key)).NewReader(ctx)
	if stderrors.Is(err, storage.ErrObjectNotExist) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open GCS object").WithDetail("key", key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read GCS object").WithDetail("key", key)
	}
	return data, nil
}

func (b *GCSBackend) Exists(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	_, err := b.bucket.Object(b.key(key)).Attrs(ctx)
	if stderrors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeConnection, "failed to stat GCS object").WithDetail("key", key)
	}
	return true, nil
}

func (b *GCSBackend) List(ctx context.Context, prefix string) ([]string, error) {
	full := b.key(prefix)
	if strings.HasSuffix(prefix, "/") {
		full += "/"
	}
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: full})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to list GCS objects").WithDetail("prefix", prefix)
		}
		key := attrs.Name
		if b.prefix != "" {
			key = strings.TrimPrefix(key, b.prefix+"/")
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *GCSBackend) Delete(ctx context.Context, prefix string) error {
	keys, err := b.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		err := b.bucket.Object(b.key(key)).Delete(ctx)
		if err != nil && !stderrors.Is(err, storage.ErrObjectNotExist) {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to delete GCS object").WithDetail("key", key)
		}
	}
	return nil
}

func (b *GCSBackend) Close() error {
	return b.client.Close()
}
