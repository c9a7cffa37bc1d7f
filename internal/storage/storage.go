package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxImageSize = 20 << 20
	MaxVideoSize = 100 << 20
	MaxImages    = 20
	MaxVideos    = 5
)

var allowedImageExt = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".webp": {}, ".heic": {},
}

var allowedVideoExt = map[string]struct{}{
	".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {}, ".webm": {}, ".mkv": {},
}

// Storage keeps part media on disk: one folder per part under Root, videos in
// a video/ subfolder. The database stays authoritative, file operations are
// best-effort cleanup on the delete paths.
type Storage struct {
	Root string
}

func New(root string) *Storage {
	return &Storage{Root: root}
}

func (s *Storage) PartDir(partID uint) string {
	return filepath.Join(s.Root, fmt.Sprint(partID))
}

func (s *Storage) VideoDir(partID uint) string {
	return filepath.Join(s.PartDir(partID), "video")
}

func (s *Storage) SaveImage(partID uint, filename string, r io.Reader) error {
	return save(s.PartDir(partID), filename, r)
}

func (s *Storage) SaveVideo(partID uint, filename string, r io.Reader) error {
	return save(s.VideoDir(partID), filename, r)
}

func save(dir, filename string, r io.Reader) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

// DeleteImage removes the file from disk; a missing file is not an error.
func (s *Storage) DeleteImage(partID uint, filename string) error {
	return remove(filepath.Join(s.PartDir(partID), filename))
}

func (s *Storage) DeleteVideo(partID uint, filename string) error {
	return remove(filepath.Join(s.VideoDir(partID), filename))
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Storage) DeletePartFolder(partID uint) error {
	return os.RemoveAll(s.PartDir(partID))
}

// UniqueFilename keeps the original extension and replaces the name with a
// random hex id, so uploads cannot collide or traverse paths.
func UniqueFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

func AllowedImage(filename string) bool {
	_, ok := allowedImageExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func AllowedVideo(filename string) bool {
	_, ok := allowedVideoExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}
