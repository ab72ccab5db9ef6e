package core

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedReader struct {
	io.Reader
	closed bool
}

func (r *trackedReader) Close() error {
	r.closed = true
	return nil
}

func TestReaderSource(t *testing.T) {
	r := &trackedReader{Reader: strings.NewReader("%PDF-1.4")}
	src := NewReaderSource(r)

	doc, err := ReadDocument(src, "a.pdf", "application/pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), doc.Data)
	assert.Equal(t, int64(8), doc.Size)
	assert.True(t, r.closed)

	_, err = src.ReadAll()
	assert.ErrorContains(t, err, "already consumed")
}

func TestReaderSource_ClosedOnUnsupportedType(t *testing.T) {
	r := &trackedReader{Reader: strings.NewReader("x")}
	_, err := ReadDocument(NewReaderSource(r), "a.txt", "text/plain", nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.True(t, r.closed)
}
