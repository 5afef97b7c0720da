package objectstorage

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundseg/internal/config"
	"groundseg/pkg/errors"
)

func TestClassifyMinioError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
		fatal  bool
	}{
		{"missing key", minio.ErrorResponse{Code: "NoSuchKey"}, "object_not_found", false},
		{"missing bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, "bucket_not_found", false},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied"}, "permission_denied", true},
		{"bad signature", minio.ErrorResponse{Code: "SignatureDoesNotMatch"}, "auth_invalid", true},
		{"local file", fmt.Errorf("open x: %w", os.ErrNotExist), "local_file_missing", true},
		{"timeout", stderrors.New("i/o timeout"), "timeout", false},
		{"refused", stderrors.New("dial tcp: connection refused"), "endpoint_unreachable", false},
		{"cancelled", context.Canceled, "cancelled", false},
		{"other", stderrors.New("boom"), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyMinioError(tt.err, "upload", "bucket", "a/b")

			assert.True(t, errors.IsFileOperation(err))
			assert.Equal(t, tt.fatal, errors.IsFatal(err))
			assert.Equal(t, tt.reason, err.Details["reason"])
			assert.Equal(t, "upload", err.Details["operation"])
			assert.Equal(t, "bucket", err.Details["bucket"])
			assert.Equal(t, "a/b", err.Details[errors.DetailKey])
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNewMinioStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ObjectStorageConfig
		wantErr bool
	}{
		{"host and port", config.ObjectStorageConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, false},
		{"url endpoint", config.ObjectStorageConfig{Endpoint: "https://s3.example.com", Region: "eu-west-1"}, false},
		{"empty endpoint", config.ObjectStorageConfig{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMinioStore(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s.client)
		})
	}
}

func TestDownload_RejectsAddressWithoutKey(t *testing.T) {
	s, err := NewMinioStore(config.ObjectStorageConfig{Endpoint: "localhost:9000"})
	require.NoError(t, err)

	_, err = s.Download(context.Background(), "s3://bucket", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsFileOperation(err))
	assert.True(t, errors.IsFatal(err))
}
