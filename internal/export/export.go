// Package export saves produced audio to a local directory or an S3 bucket.
package export

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ErrNoTarget is returned by ParseTarget for an empty target.
var ErrNoTarget = errors.New("no export target configured")

// Exporter stores a clip and returns where it went.
type Exporter interface {
	Export(ctx context.Context, name string, clip []byte) (string, error)
}

// ParseTarget returns an S3 exporter for "s3://bucket/prefix" and a directory
// exporter for anything else.
func ParseTarget(ctx context.Context, target string) (Exporter, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, ErrNoTarget
	}
	if strings.HasPrefix(target, "s3://") {
		u, err := url.Parse(target)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid S3 target %q", target)
		}
		return NewS3Exporter(ctx, u.Host, strings.Trim(u.Path, "/"))
	}
	dir, err := homedir.Expand(target)
	if err != nil {
		return nil, fmt.Errorf("invalid export directory: %w", err)
	}
	return DirExporter{Dir: dir}, nil
}

// AudioName turns a PDF filename into the name of its audio file.
func AudioName(pdfName string) string {
	base := filepath.Base(pdfName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "audio"
	}
	return stem + ".wav"
}

// DirExporter writes clips into Dir.
type DirExporter struct {
	Dir string
}

// Export implements Exporter.
func (d DirExporter) Export(_ context.Context, name string, clip []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("unable to create export directory: %w", err)
	}
	path := filepath.Join(d.Dir, AudioName(name))
	if err := os.WriteFile(path, clip, 0o644); err != nil { //nolint:gosec
		return "", fmt.Errorf("unable to write audio: %w", err)
	}
	return path, nil
}
