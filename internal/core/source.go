package core

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ByteSource hands the upload payload to the pipeline exactly once. Close
// releases whatever backs the payload.
type ByteSource interface {
	ReadAll() ([]byte, error)
	Close() error
}

// MemorySource is a ByteSource over an in-memory buffer.
type MemorySource struct {
	data []byte
	read bool
}

func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data}
}

func (m *MemorySource) ReadAll() ([]byte, error) {
	if m.read {
		return nil, fmt.Errorf("byte source already consumed")
	}
	m.read = true
	data := m.data
	m.data = nil
	return data, nil
}

func (m *MemorySource) Close() error { return nil }

// FileSource is a ByteSource over a file on disk. When temporary is set the
// file is removed on Close.
type FileSource struct {
	path      string
	temporary bool
	read      bool
}

func NewFileSource(path string, temporary bool) *FileSource {
	return &FileSource{path: path, temporary: temporary}
}

func (f *FileSource) Path() string { return f.path }

func (f *FileSource) ReadAll() ([]byte, error) {
	if f.read {
		return nil, fmt.Errorf("byte source already consumed")
	}
	f.read = true
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, nil
}

func (f *FileSource) Close() error {
	if !f.temporary {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp file %s: %w", f.path, err)
	}
	return nil
}

// ReaderSource is a ByteSource over an open reader such as a parsed
// multipart part. Close closes the reader.
type ReaderSource struct {
	r    io.ReadCloser
	read bool
}

func NewReaderSource(r io.ReadCloser) *ReaderSource {
	return &ReaderSource{r: r}
}

func (s *ReaderSource) ReadAll() ([]byte, error) {
	if s.read {
		return nil, fmt.Errorf("byte source already consumed")
	}
	s.read = true
	data, err := io.ReadAll(s.r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

func (s *ReaderSource) Close() error { return s.r.Close() }

// ReadDocument drains src into a DocumentBytes and always closes it. Close
// failures are logged and never returned.
func ReadDocument(src ByteSource, originalName, mime string, logger *slog.Logger) (DocumentBytes, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("byte source cleanup failed", "file", originalName, "error", err)
		}
	}()

	kind, ok := KindFromMIME(mime)
	if !ok {
		return DocumentBytes{}, fmt.Errorf("%w: %q", ErrUnsupportedType, mime)
	}
	data, err := src.ReadAll()
	if err != nil {
		return DocumentBytes{}, err
	}
	return DocumentBytes{
		Data:         data,
		Kind:         kind,
		MIMEType:     mime,
		OriginalName: originalName,
		Size:         int64(len(data)),
	}, nil
}
