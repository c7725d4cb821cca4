// Package imageref validates image attachments for provider calls and
// converts local files into inline data references.
package imageref

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the ceiling for local image files.
const MaxFileSize = 20 << 20 // 20MB

// mimeByExt maps allowed file extensions to their MIME types.
var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".svg":  "image/svg+xml",
}

// allowedDataMIMEs is the allowlist for inline data references.
var allowedDataMIMEs = map[string]bool{
	"image/jpeg":    true,
	"image/jpg":     true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/bmp":     true,
	"image/tiff":    true,
	"image/svg+xml": true,
}

// ResourceError reports an image reference that cannot be attached. It is
// fatal to the call that required the image.
type ResourceError struct {
	Ref    string
	Reason string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("image resource %q: %s", e.Ref, e.Reason)
}

// Attachment is a resolved image reference ready for a provider request:
// either a pass-through remote URL or an inline data reference.
type Attachment struct {
	URL    string
	Detail string // "low" or "auto"
}

// Clone returns a copy of the attachment.
func (a *Attachment) Clone() *Attachment {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Loader resolves image references.
type Loader struct {
	maxSize int64
}

// NewLoader creates a loader with the default size ceiling.
func NewLoader() *Loader {
	return &Loader{maxSize: MaxFileSize}
}

// Resolve validates ref and produces an attachment. Local paths are read and
// converted into data references; remote references are validated and passed
// through. Any failure is a *ResourceError.
func (l *Loader) Resolve(ref, detail string) (Attachment, error) {
	if detail == "" {
		detail = "auto"
	}
	if IsLocalPath(ref) {
		url, err := l.encodeLocal(ref)
		if err != nil {
			return Attachment{}, err
		}
		return Attachment{URL: url, Detail: detail}, nil
	}
	if err := validateRemote(ref); err != nil {
		return Attachment{}, err
	}
	return Attachment{URL: ref, Detail: detail}, nil
}

// IsLocalPath reports whether ref looks like a filesystem path rather than a
// remote reference.
func IsLocalPath(ref string) bool {
	for _, prefix := range []string{"/", "./", "../", "~/"} {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	// Windows drive letters.
	if len(ref) >= 3 && ref[1] == ':' && (ref[2] == '\\' || ref[2] == '/') {
		return true
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "data:") {
		return false
	}
	// Relative path with a separator and an extension.
	return (strings.ContainsRune(ref, '/') || strings.ContainsRune(ref, '\\')) &&
		strings.ContainsRune(ref, '.')
}

func (l *Loader) encodeLocal(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", &ResourceError{Ref: path, Reason: "file does not exist or is not readable"}
	}
	if info.Size() > l.maxSize {
		return "", &ResourceError{
			Ref:    path,
			Reason: fmt.Sprintf("file size %d exceeds ceiling %d", info.Size(), l.maxSize),
		}
	}
	mime, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", &ResourceError{
			Ref:    path,
			Reason: fmt.Sprintf("unsupported image extension %q", filepath.Ext(path)),
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ResourceError{Ref: path, Reason: "read failed: " + err.Error()}
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

func validateRemote(ref string) error {
	if strings.HasPrefix(ref, "data:") {
		rest, ok := strings.CutPrefix(ref, "data:")
		if !ok {
			return &ResourceError{Ref: ref, Reason: "malformed data reference"}
		}
		mime, _, found := strings.Cut(rest, ";base64,")
		if !found || !allowedDataMIMEs[mime] {
			return &ResourceError{Ref: ref, Reason: "data reference must carry an allowlisted image MIME type"}
		}
		return nil
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return nil
	}
	return &ResourceError{Ref: ref, Reason: "remote reference must be http(s) or an inline data reference"}
}
