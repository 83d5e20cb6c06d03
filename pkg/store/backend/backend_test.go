package backend

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/arraystore/pkg/errors"
)

func TestAferoPutGet(t *testing.T) {
	ctx := context.Background()
	b := NewMem()
	defer b.Close()

	require.NoError(t, b.Put(ctx, "a/__meta.json", []byte(`{"x":1}`)))
	got, err := b.Get(ctx, "a/__meta.json")
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(got))

	require.NoError(t, b.Put(ctx, "a/__meta.json", []byte(`{"x":2}`)))
	got, err = b.Get(ctx, "a/__meta.json")
	require.NoError(t, err)
	assert.Equal(t, `{"x":2}`, string(got))

	ok, err := b.Exists(ctx, "a/__meta.json")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = b.Get(ctx, "a/missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	ok, err = b.Exists(ctx, "a/missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAferoListAndDelete(t *testing.T) {
	ctx := context.Background()
	b := NewAfero(afero.NewMemMapFs(), "/data")

	for _, key := range []string{
		"x/__fragments/00000002-b.arrow",
		"x/__fragments/00000001-a.arrow",
		"x/__schema.json",
		"y/__schema.json",
	} {
		require.NoError(t, b.Put(ctx, key, []byte("v")))
	}

	keys, err := b.List(ctx, "x/__fragments/")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/__fragments/00000001-a.arrow", "x/__fragments/00000002-b.arrow"}, keys)

	keys, err = b.List(ctx, "z/")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, b.Delete(ctx, "x/"))
	keys, err = b.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"y/__schema.json"}, keys)
}

func TestInvalidKeys(t *testing.T) {
	ctx := context.Background()
	b := NewMem()
	for _, key := range []string{"", "/abs", "a/../b"} {
		err := b.Put(ctx, key, nil)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), key)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"mem default", Config{}, false},
		{"file needs root", Config{Kind: File}, true},
		{"file", Config{Kind: File, Root: "/tmp/x"}, false},
		{"s3 needs bucket", Config{Kind: S3}, true},
		{"gcs", Config{Kind: GCS, Bucket: "b"}, false},
		{"unknown", Config{Kind: "ftp"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpenFile(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, Config{Kind: File, Root: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, "arr/__meta.json", []byte("{}")))
	keys, err := b.List(ctx, "arr/")
	require.NoError(t, err)
	assert.Equal(t, []string{"arr/__meta.json"}, keys)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a/b/c", Join("a/", "", "/b", "c/"))
	assert.Equal(t, "", Join())
}
