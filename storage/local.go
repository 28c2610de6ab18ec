package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/leeforge/resizer/errors"
)

// LocalProvider implements Provider for the local filesystem
type LocalProvider struct {
	basePath string
	baseURL  string
}

// NewLocalProvider creates a new local storage provider
func NewLocalProvider(basePath, baseURL string) (*LocalProvider, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeStorageFailure, "create base directory")
	}
	return &LocalProvider{
		basePath: basePath,
		baseURL:  baseURL,
	}, nil
}

// Upload writes the body under basePath. A partially written file is removed.
func (p *LocalProvider) Upload(ctx context.Context, input UploadInput) (UploadOutput, error) {
	key, err := cleanKey(input.Key)
	if err != nil {
		return UploadOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		return UploadOutput{}, err
	}

	fullPath := filepath.Join(p.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return UploadOutput{}, errors.WrapWithType(err, errors.ErrorTypeStorageFailure, "create directory")
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return UploadOutput{}, errors.WrapWithType(err, errors.ErrorTypeStorageFailure, "create file")
	}

	size, err := io.Copy(dst, input.Body)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(fullPath)
		return UploadOutput{}, errors.WrapWithType(err, errors.ErrorTypeStorageFailure, "write file content")
	}

	// URLs always use forward slashes
	return UploadOutput{
		Key:  key,
		URL:  joinURL(p.baseURL, key),
		Size: size,
	}, nil
}

// Delete removes a file. Missing files are not an error.
func (p *LocalProvider) Delete(ctx context.Context, key string) error {
	fullPath, err := p.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return errors.WrapWithType(err, errors.ErrorTypeStorageFailure, "delete file")
	}
	return nil
}

// Exists checks if a file exists
func (p *LocalProvider) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := p.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.WrapWithType(err, errors.ErrorTypeStorageFailure, "stat file")
}

// URL returns the public URL for a key
func (p *LocalProvider) URL(ctx context.Context, key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return joinURL(p.baseURL, k), nil
}

func (p *LocalProvider) Name() string {
	return "local"
}

func (p *LocalProvider) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(p.basePath, filepath.FromSlash(k)), nil
}
