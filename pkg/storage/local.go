package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps recording artifacts on the local filesystem, one
// directory for raw per-party uploads and one for merged output.
type LocalStore struct {
	uploadDir string
	mergedDir string
}

func NewLocalStore(uploadDir, mergedDir string) (*LocalStore, error) {
	for _, dir := range []string{uploadDir, mergedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
		}
	}
	return &LocalStore{uploadDir: uploadDir, mergedDir: mergedDir}, nil
}

// SaveUpload streams an uploaded artifact to disk and returns the stored path.
// File names embed session, role and timestamp so re-uploads never clobber
// a file still being read by the merge.
func (s *LocalStore) SaveUpload(sessionId, role, originalName string, src io.Reader) (string, int64, error) {
	name := fmt.Sprintf("%s_%s_%d%s", sessionId, role, time.Now().UnixMilli(), safeExt(originalName))
	path := filepath.Join(s.uploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write upload file: %w", err)
	}
	return path, written, nil
}

// MergedPath returns the destination path for a session's merged audio.
func (s *LocalStore) MergedPath(sessionId, ext string) string {
	return filepath.Join(s.mergedDir, fmt.Sprintf("%s_merged%s", sessionId, ext))
}

func (s *LocalStore) Open(path string) (*os.File, error) {
	return os.Open(path)
}

func (s *LocalStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *LocalStore) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *LocalStore) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Copy duplicates an artifact, used by the fallback merge which promotes
// a single party's file to the merged slot.
func (s *LocalStore) Copy(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dstPath)
		return err
	}
	return nil
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || len(ext) > 8 {
		return ".webm"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".webm"
		}
	}
	return ext
}
