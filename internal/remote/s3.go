package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/schollz/progressbar/v3"

	"github.com/franz/ridgemont-catalog/internal/util"
)

// S3Store talks to Cloudflare R2 through its S3-compatible API
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store validates credentials and builds a client. No request is
// made until the first operation.
func NewS3Store(cfg *Config) (*S3Store, error) {
	var missing []string
	if cfg.AccountID == "" && cfg.Endpoint == "" {
		missing = append(missing, "CLOUDFLARE_ACCOUNT_ID")
	}
	if cfg.AccessKeyID == "" {
		missing = append(missing, "CLOUDFLARE_R2_ACCESS_KEY_ID")
	}
	if cfg.SecretAccessKey == "" {
		missing = append(missing, "CLOUDFLARE_R2_SECRET_ACCESS_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing R2 credentials %v", util.ErrInvalidConfig, missing)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = cfg.AccountID + ".r2.cloudflarestorage.com"
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: true,
		Region: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create R2 client: %w", err)
	}
	return &S3Store{client: client, bucket: bucket}, nil
}

func (s *S3Store) String() string {
	return fmt.Sprintf("r2://%s", s.bucket)
}

// Exists checks for key with a HEAD request
func (s *S3Store) Exists(ctx context.Context, key string) bool {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true
	}
	if isNotFound(err) {
		return false
	}
	util.WarnLog("Existence check failed for %s: %v", key, err)
	return true
}

// UploadFile streams the file at path to key
func (s *S3Store) UploadFile(ctx context.Context, path, key, contentType string) bool {
	key, err := cleanKey(key)
	if err != nil {
		util.ErrorLog("Upload rejected: %v", err)
		return false
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	if util.ShowProgress() {
		if size, err := util.FileSize(path); err == nil {
			opts.Progress = progressbar.DefaultBytes(size, "Uploading")
		}
	}

	info, err := s.client.FPutObject(ctx, s.bucket, key, path, opts)
	if err != nil {
		util.ErrorLog("Upload failed for %s: %v", key, err)
		return false
	}
	util.DebugLog("Uploaded %s (%d bytes, etag %s)", key, info.Size, info.ETag)
	return true
}

// UploadJSON writes v as indented JSON
func (s *S3Store) UploadJSON(ctx context.Context, v interface{}, key string) bool {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		util.ErrorLog("Failed to encode %s: %v", key, err)
		return false
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		util.ErrorLog("Upload failed for %s: %v", key, err)
		return false
	}
	return true
}

// GetJSON downloads and decodes key
func (s *S3Store) GetJSON(ctx context.Context, key string, out interface{}) bool {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		util.WarnLog("Download failed for %s: %v", key, err)
		return false
	}
	defer obj.Close()

	if err := json.NewDecoder(obj).Decode(out); err != nil {
		if isNotFound(err) {
			util.DebugLog("No remote object %s", key)
		} else {
			util.WarnLog("Failed to read %s: %v", key, err)
		}
		return false
	}
	return true
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return os.IsNotExist(err)
}
