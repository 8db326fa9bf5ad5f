// Package upload stages incoming multipart image files on local disk before
// the hosted-image gateway picks them up, mirroring the temporary-storage
// middleware the frontend already talks to.
package upload

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// files spill to the request's own temp files before staging.
const maxUploadMemory = 32 << 20

type Stager struct {
	dir    string
	logger *zap.Logger
}

func NewStager(dir string, logger *zap.Logger) (*Stager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Stager{dir: dir, logger: logger}, nil
}

// Stage writes each present slot's file to the staging dir under a
// timestamp-prefixed name and returns slot -> local path. The cleanup
// function removes the staged files; call it once the gateway is done.
func (s *Stager) Stage(r *http.Request, slots []string) (map[string]string, func(), error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, func() {}, fmt.Errorf("parse multipart form: %w", err)
	}

	paths := make(map[string]string, len(slots))
	cleanup := func() {
		for _, p := range paths {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("staged file cleanup failed", zap.String("path", p), zap.Error(err))
			}
		}
	}

	for _, slot := range slots {
		file, header, err := r.FormFile(slot)
		if err == http.ErrMissingFile {
			continue
		}
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("read form file %s: %w", slot, err)
		}

		// The slot keeps names unique even when two slots carry the same
		// client filename within one millisecond.
		name := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), slot, filepath.Base(header.Filename))
		dest := filepath.Join(s.dir, name)
		if err := writeFile(dest, file); err != nil {
			file.Close()
			cleanup()
			return nil, func() {}, fmt.Errorf("stage %s: %w", slot, err)
		}
		file.Close()
		paths[slot] = dest
	}

	return paths, cleanup, nil
}

func writeFile(dest string, src io.Reader) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
