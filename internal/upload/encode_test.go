package upload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		mediaType string
		want      ContentKind
	}{
		{"pdf by type", "report", "application/pdf", KindBinary},
		{"pdf by name", "report.pdf", "", KindBinary},
		{"pdf by upper-case name", "REPORT.PDF", "application/octet-stream", KindBinary},
		{"png", "scan.png", "image/png", KindBinary},
		{"svg is an image type", "logo.svg", "image/svg+xml", KindBinary},
		{"plain text", "notes.txt", "text/plain", KindText},
		{"markdown without type", "README.md", "", KindText},
		{"docx is sent as text", "memo.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", KindText},
		{"pdf only in the middle", "report.pdf.txt", "text/plain", KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.file, tt.mediaType))
		})
	}
}

func TestEncodeContent_Binary(t *testing.T) {
	got, err := EncodeContent(bytes.NewReader([]byte{0x25, 0x50, 0x44, 0x46}), KindBinary, 4)
	require.NoError(t, err)
	assert.Equal(t, "JVBERg==", got)
}

func TestEncodeContent_BinaryRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, size := range []int{0, 1, 2, 3, 255, 4096, 65537} {
		data := make([]byte, size)
		rng.Read(data)

		encoded, err := EncodeContent(bytes.NewReader(data), KindBinary, int64(size))
		require.NoError(t, err)

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		assert.Equal(t, data, decoded, "size %d", size)
	}
}

func TestEncodeContent_Text(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"ascii", []byte("hello"), "hello"},
		{"multibyte", []byte("naïve café ✓"), "naïve café ✓"},
		{"bom stripped", append([]byte{0xEF, 0xBB, 0xBF}, "hi"...), "hi"},
		{"invalid byte replaced", []byte{'a', 0xFF, 'b'}, "a�b"},
		{"empty", []byte{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeContent(bytes.NewReader(tt.input), KindText, int64(len(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("device not ready")
}

func TestEncodeContent_Failures(t *testing.T) {
	t.Run("read error", func(t *testing.T) {
		_, err := EncodeContent(io.MultiReader(strings.NewReader("abc"), failingReader{}), KindText, -1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device not ready")
	})

	t.Run("short read", func(t *testing.T) {
		_, err := EncodeContent(strings.NewReader("abc"), KindBinary, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "got 3 of 10 bytes")
	})

	t.Run("unknown size skips the check", func(t *testing.T) {
		got, err := EncodeContent(strings.NewReader("abc"), KindText, -1)
		require.NoError(t, err)
		assert.Equal(t, "abc", got)
	})
}
