// Package storage writes encoded resize results to an output sink.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/leeforge/resizer/errors"
)

// Provider 存储提供者接口
type Provider interface {
	Upload(ctx context.Context, input UploadInput) (UploadOutput, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	URL(ctx context.Context, key string) (string, error)
	Name() string
}

// UploadInput 上传输入
type UploadInput struct {
	Body        io.Reader
	Key         string
	ContentType string
}

// UploadOutput 上传输出
type UploadOutput struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Config 提供者配置
type Config struct {
	// Type is local or oss.
	Type  string      `mapstructure:"type" json:"type" yaml:"type" default:"local"`
	Local LocalConfig `mapstructure:"local" json:"local" yaml:"local"`
	OSS   OSSConfig   `mapstructure:"oss" json:"oss" yaml:"oss"`
}

type LocalConfig struct {
	BasePath string `mapstructure:"base_path" json:"base_path" yaml:"base_path" default:"output"`
	BaseURL  string `mapstructure:"base_url" json:"base_url" yaml:"base_url" default:"/media"`
}

type OSSConfig struct {
	// Endpoint such as oss-cn-hangzhou.aliyuncs.com
	Endpoint        string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" json:"-" yaml:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret" json:"-" yaml:"access_key_secret"`
	Bucket          string `mapstructure:"bucket" json:"bucket" yaml:"bucket"`
	// Domain is a custom or CDN domain used for public URLs.
	Domain string `mapstructure:"domain" json:"domain" yaml:"domain"`
}

// New creates the provider selected by cfg.Type.
func New(cfg Config) (Provider, error) {
	switch cfg.Type {
	case "local", "":
		return NewLocalProvider(cfg.Local.BasePath, cfg.Local.BaseURL)
	case "oss":
		o := cfg.OSS
		if o.Endpoint == "" || o.Bucket == "" || o.AccessKeyID == "" || o.AccessKeySecret == "" {
			return nil, errors.New(errors.ErrorTypeInvalidConfig, "oss provider requires endpoint, bucket and credentials")
		}
		return NewOSSProvider(o.Endpoint, o.AccessKeyID, o.AccessKeySecret, o.Bucket, o.Domain)
	default:
		return nil, errors.Newf(errors.ErrorTypeInvalidConfig, "unsupported provider type: %s", cfg.Type).
			WithDetail("type", cfg.Type)
	}
}

// ObjectKey returns a fresh key of the form folder/2006/01/02/<uuid><ext>,
// with the extension derived from mimeType.
func ObjectKey(folder, mimeType string) string {
	return objectKey(folder, mimeType, time.Now(), uuid.New())
}

func objectKey(folder, mimeType string, now time.Time, id uuid.UUID) string {
	ext := ".bin"
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		ext = m.Extension()
	}
	return path.Join(strings.Trim(folder, "/"), now.Format("2006/01/02"), id.String()+ext)
}

// cleanKey normalises key to a relative slash path and rejects escapes.
func cleanKey(key string) (string, error) {
	k := path.Clean(strings.TrimLeft(key, "/"))
	if k == "." {
		return "", errors.New(errors.ErrorTypeStorageFailure, "empty object key")
	}
	if k == ".." || strings.HasPrefix(k, "../") {
		return "", errors.Newf(errors.ErrorTypeStorageFailure, "invalid object key %q", key).
			WithDetail("key", key)
	}
	return k, nil
}

func joinURL(base, key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(base, "/"), key)
}
