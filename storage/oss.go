package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/leeforge/resizer/errors"
)

// OSSProvider implements Provider for Aliyun OSS
type OSSProvider struct {
	bucket *oss.Bucket
	domain string // Custom domain or CDN domain
}

// countingReader reports how many bytes the SDK consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// NewOSSProvider creates a new OSS storage provider. No request is made
// until the first operation.
func NewOSSProvider(endpoint, accessKeyID, accessKeySecret, bucketName, domain string) (*OSSProvider, error) {
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeStorageFailure, "create OSS client")
	}

	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeStorageFailure, fmt.Sprintf("get bucket %s", bucketName))
	}

	// Use bucket domain if custom domain is not provided
	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	if domain == "" {
		domain = fmt.Sprintf("https://%s.%s", bucketName, host)
	} else if !strings.HasPrefix(domain, "http") {
		domain = "https://" + domain
	}

	return &OSSProvider{
		bucket: bucket,
		domain: domain,
	}, nil
}

// Upload puts the body as an object
func (p *OSSProvider) Upload(ctx context.Context, input UploadInput) (UploadOutput, error) {
	key, err := cleanKey(input.Key)
	if err != nil {
		return UploadOutput{}, err
	}

	opts := []oss.Option{oss.WithContext(ctx)}
	if input.ContentType != "" {
		opts = append(opts, oss.ContentType(input.ContentType))
	}

	body := &countingReader{r: input.Body}
	if err := p.bucket.PutObject(key, body, opts...); err != nil {
		return UploadOutput{}, errors.WrapWithType(err, errors.ErrorTypeStorageFailure, "upload to OSS").
			WithDetail("key", key)
	}

	return UploadOutput{
		Key:  key,
		URL:  joinURL(p.domain, key),
		Size: body.n,
	}, nil
}

// Delete removes an object from OSS
func (p *OSSProvider) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := p.bucket.DeleteObject(k, oss.WithContext(ctx)); err != nil {
		return errors.WrapWithType(err, errors.ErrorTypeStorageFailure, "delete from OSS").
			WithDetail("key", k)
	}
	return nil
}

// Exists checks if an object exists in OSS
func (p *OSSProvider) Exists(ctx context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	ok, err := p.bucket.IsObjectExist(k, oss.WithContext(ctx))
	if err != nil {
		return false, errors.WrapWithType(err, errors.ErrorTypeStorageFailure, "stat OSS object")
	}
	return ok, nil
}

// URL returns the public URL for a key
func (p *OSSProvider) URL(ctx context.Context, key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return joinURL(p.domain, k), nil
}

// SignedURL generates a signed URL for private object access
func (p *OSSProvider) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	expirySec := int64(expiry.Seconds())
	if expirySec <= 0 {
		expirySec = 3600 // Default 1 hour
	}

	url, err := p.bucket.SignURL(k, oss.HTTPGet, expirySec)
	if err != nil {
		return "", errors.WrapWithType(err, errors.ErrorTypeStorageFailure, "sign URL")
	}
	return url, nil
}

func (p *OSSProvider) Name() string {
	return "oss"
}
