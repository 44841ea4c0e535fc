package upload

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ContentKind says how a file's bytes travel in the ingestion request.
type ContentKind int

const (
	KindText ContentKind = iota
	KindBinary
)

func (k ContentKind) String() string {
	if k == KindBinary {
		return "binary"
	}
	return "text"
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Classify treats PDFs (by type or name) and images as binary, everything else as text.
func Classify(name, mediaType string) ContentKind {
	if mediaType == "application/pdf" ||
		strings.HasSuffix(strings.ToLower(name), ".pdf") ||
		strings.HasPrefix(mediaType, "image/") {
		return KindBinary
	}
	return KindText
}

// EncodeContent reads r to the end and renders it for the request body:
// base64 for binary content, UTF-8 text otherwise. A negative expectedSize
// skips the length check.
func EncodeContent(r io.Reader, kind ContentKind, expectedSize int64) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if expectedSize >= 0 && int64(len(data)) != expectedSize {
		return "", fmt.Errorf("failed to read file: got %d of %d bytes", len(data), expectedSize)
	}

	if kind == KindBinary {
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return decodeUTF8(data), nil
}

// decodeUTF8 mirrors a browser's File.text(): BOM dropped, bad sequences replaced.
func decodeUTF8(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
