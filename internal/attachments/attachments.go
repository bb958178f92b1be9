package attachments

import (
	"crypto/sha256"
	"editorchat-backend/internal/chaterr"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

const (
	URLPrefix       = "/cdn/attachments/"
	DefaultMaxBytes = 10 << 20
)

// accepted lists what a newsroom actually passes around: pictures, page
// proofs and documents.
var accepted = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
	"text/plain",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.oasis.opendocument.text",
}

// Store keeps uploaded files on disk under their content hash, so the same
// file uploaded twice is stored once.
type Store struct {
	mutex    sync.Mutex
	dir      string
	maxBytes int64
}

func New(dir string, maxBytes int64) *Store {
	if dir == "" {
		dir = filepath.Join(".", "public", "attachments")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{dir: dir, maxBytes: maxBytes}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save writes data and returns the reference a message stores, like
// /cdn/attachments/<sha256>.pdf
func (s *Store) Save(data []byte) (string, error) {
	if len(data) == 0 {
		return "", chaterr.Validation("empty_attachment")
	}
	if int64(len(data)) > s.maxBytes {
		return "", chaterr.Validation("large_attachment")
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), accepted...) {
		return "", chaterr.Validation("unsupported_attachment %s", mtype.String())
	}

	hash := sha256.Sum256(data)
	fileName := hex.EncodeToString(hash[:]) + mtype.Extension()
	fullPath := filepath.Join(s.dir, fileName)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.MkdirAll(s.dir, os.ModePerm); err != nil {
		return "", err
	}

	_, err := os.Stat(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(fullPath, data, 0644); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	return URLPrefix + fileName, nil
}

// SaveUpload reads the "file" field of a multipart request.
func (s *Store) SaveUpload(r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.maxBytes+1<<20)

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", chaterr.Validation("large_attachment")
		}
		return "", chaterr.Validation("missing_attachment")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		return "", err
	}

	return s.Save(data)
}

// IsReference reports whether ref points into this store. Messages only
// accept attachment references produced by Save.
func IsReference(ref string) bool {
	name, ok := strings.CutPrefix(ref, URLPrefix)
	if !ok || name == "" {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}
