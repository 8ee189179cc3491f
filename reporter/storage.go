package reporter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Storage is where reports and their photos end up.
type Storage interface {
	// Ensure prepares the image directory and the log header. Safe to call on every start.
	Ensure() error
	// Append adds one row to the log.
	Append(r HazardReport) error
	// SaveImage writes data under name in the image directory and returns the stored path.
	SaveImage(data []byte, name string) (string, error)
}

// FileStore keeps reports in a CSV file and photos in a flat directory.
type FileStore struct {
	csvPath  string
	imageDir string
	mu       sync.Mutex
}

func NewFileStore(csvPath string, imageDir string) (*FileStore, error) {
	if strings.TrimSpace(csvPath) == "" {
		return nil, fmt.Errorf("reports csv path is empty")
	}
	if strings.TrimSpace(imageDir) == "" {
		return nil, fmt.Errorf("uploads dir is empty")
	}
	return &FileStore{csvPath: csvPath, imageDir: imageDir}, nil
}

func (s *FileStore) CSVPath() string  { return s.csvPath }
func (s *FileStore) ImageDir() string { return s.imageDir }

func (s *FileStore) Ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.imageDir, 0o755); err != nil {
		return err
	}
	if dir := filepath.Dir(s.csvPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(s.csvPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		header, err := encodeRow(Columns)
		if err != nil {
			return err
		}
		if _, err := f.Write(header); err != nil {
			return err
		}
		return f.Sync()
	}

	got, err := csv.NewReader(f).Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", s.csvPath, err)
	}
	if !sameColumns(got, Columns) {
		return fmt.Errorf("%w: %s has %v", ErrSchemaMismatch, s.csvPath, got)
	}

	// A log cut off mid-line would glue the next row onto the last one.
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] != '\n' {
		if _, err := f.WriteAt([]byte("\n"), info.Size()); err != nil {
			return err
		}
		return f.Sync()
	}
	return nil
}

func (s *FileStore) Append(r HazardReport) error {
	line, err := encodeRow(r.Row())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// No O_CREATE: a log that vanished must not be recreated without its header.
	f, err := os.OpenFile(s.csvPath, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	n, writeErr := f.Write(line)
	if writeErr == nil && n < len(line) {
		writeErr = io.ErrShortWrite
	}
	if writeErr == nil {
		writeErr = f.Sync()
	}
	closeErr := f.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

func (s *FileStore) SaveImage(data []byte, name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	dstPath := filepath.Join(s.imageDir, name)
	tmpPath := filepath.Join(s.imageDir, "."+uuid.NewString()+".tmp")

	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	_, writeErr := out.Write(data)
	if writeErr == nil {
		writeErr = out.Sync()
	}
	closeErr := out.Close()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return "", writeErr
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return "", closeErr
	}
	// Link instead of rename: an existing photo is never replaced.
	linkErr := os.Link(tmpPath, dstPath)
	_ = os.Remove(tmpPath)
	if linkErr != nil {
		if errors.Is(linkErr, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrImageExists, dstPath)
		}
		return "", linkErr
	}
	return dstPath, nil
}

// ReadRows returns every row of a reports log, header included.
func ReadRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Columns)
	return r.ReadAll()
}

func encodeRow(fields []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sameColumns(got []string, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		g := got[i]
		if i == 0 {
			// tolerate a UTF-8 BOM written by spreadsheet tools
			g = strings.TrimPrefix(g, "\ufeff")
		}
		if g != want[i] {
			return false
		}
	}
	return true
}
