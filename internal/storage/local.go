package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const volumeFile = "disk.img"

// Compile-time check that LocalProvisioner satisfies VolumeProvisioner.
var _ VolumeProvisioner = (*LocalProvisioner)(nil)

// LocalProvisioner backs volumes with sparse files under a shared
// storage root, one directory per volume: <root>/<tier>/<id>/disk.img.
type LocalProvisioner struct {
	Root string
}

// NewLocalProvisioner creates a provisioner rooted at dir.
func NewLocalProvisioner(dir string) *LocalProvisioner {
	return &LocalProvisioner{Root: dir}
}

// CreateVolume creates the volume directory and a sparse image file of
// the requested size.
func (p *LocalProvisioner) CreateVolume(ctx context.Context, tier, id string, sizeGB int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(p.Root, tier, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create volume dir: %w", err)
	}

	path := filepath.Join(dir, volumeFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create volume image: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(int64(sizeGB) << 30); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("size volume image: %w", err)
	}
	return path, nil
}

// DeleteVolume removes the volume's directory and everything in it.
func (p *LocalProvisioner) DeleteVolume(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Dir(path))
}

// ResizeVolume grows the sparse image to the new size.
func (p *LocalProvisioner) ResizeVolume(ctx context.Context, path string, newSizeGB int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Truncate(path, int64(newSizeGB)<<30); err != nil {
		return fmt.Errorf("resize volume image: %w", err)
	}
	return nil
}

// SupportsShrink reports false: truncating a live image below its
// filesystem's high-water mark corrupts it.
func (p *LocalProvisioner) SupportsShrink() bool {
	return false
}
