package media

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxUploadBytes caps a single upload when no limit is configured
const DefaultMaxUploadBytes = 100 << 20 // 100 MiB

// Intake validation errors, mapped to a Rejected response upstream
var (
	ErrEmptyFilename  = errors.New("no file name provided")
	ErrTypeNotAllowed = errors.New("file type not allowed")
	ErrTooLarge       = errors.New("file exceeds the upload size limit")
)

var defaultAllowedExtensions = []string{"wav", "mp3", "m4a", "mp4", "avi", "mov"}

var videoExtensions = map[string]bool{
	"mp4": true,
	"avi": true,
	"mov": true,
}

// Config holds intake configuration
type Config struct {
	// Dir is the scratch directory uploads are written to
	Dir string
	// MaxBytes caps a single upload; 0 means DefaultMaxUploadBytes
	MaxBytes int64
	// AllowedExtensions overrides the default allow-list
	AllowedExtensions []string
	Logger            *slog.Logger
}

// Store receives uploads into a per-user scratch directory and cleans them
// up after processing.
type Store struct {
	dir      string
	maxBytes int64
	allowed  map[string]bool
	logger   *slog.Logger
}

// NewStore creates the scratch directory and returns the intake store
func NewStore(cfg *Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("upload directory is required")
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = defaultAllowedExtensions
	}

	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		dir:      cfg.Dir,
		maxBytes: maxBytes,
		allowed:  allowed,
		logger:   logger,
	}, nil
}

// Allowed reports whether filename carries an accepted extension
func (s *Store) Allowed(filename string) bool {
	return s.allowed[extension(filename)]
}

// IsVideo reports whether filename is a video container that needs audio
// extraction before transcription.
func IsVideo(filename string) bool {
	return videoExtensions[extension(filename)]
}

// Save validates the upload and writes it into the user's scratch folder,
// returning the stored path.
func (s *Store) Save(userID, filename string, data []byte) (string, error) {
	name := sanitizeFilename(filename)
	if name == "" {
		return "", ErrEmptyFilename
	}

	if !s.Allowed(name) {
		return "", fmt.Errorf("%w: %q", ErrTypeNotAllowed, extension(name))
	}

	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	userDir := filepath.Join(s.dir, userID)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create user upload directory: %w", err)
	}

	path := filepath.Join(userDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	s.logger.Debug("Upload saved",
		slog.String("user_id", userID),
		slog.String("path", path),
		slog.Int("size", len(data)),
	)

	return path, nil
}

// Cleanup removes scratch files, logging failures instead of propagating them
func (s *Store) Cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Error("Failed to clean up scratch file",
				slog.String("path", path),
				slog.Any("error", err),
			)
		}
	}
}

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// sanitizeFilename strips any path components and characters that are not
// safe in a scratch-file name.
func sanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return strings.Trim(b.String(), "._")
}
