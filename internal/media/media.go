package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the class of media an upload must contain.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

var (
	// ErrEmptyUpload indicates an upload with no content.
	ErrEmptyUpload = errors.New("media.empty_upload")
	// ErrUnexpectedContent indicates the payload does not match the requested kind.
	ErrUnexpectedContent = errors.New("media.unexpected_content")
	// ErrEmptyPublicID indicates a destroy call without an identifier.
	ErrEmptyPublicID = errors.New("media.empty_public_id")
	// ErrTooLarge indicates the upload exceeds the configured limit.
	ErrTooLarge = errors.New("media.too_large")
)

// Upload is a file to be stored. Body is rewound before it is sent.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
	Kind        Kind
}

// Asset is a stored file.
type Asset struct {
	URL      string  `json:"url"`
	PublicID string  `json:"publicId"`
	Duration float64 `json:"duration"`
	Kind     Kind    `json:"resourceType"`
}

// Host stores and removes media files.
type Host interface {
	Upload(ctx context.Context, upload Upload) (Asset, error)
	Destroy(ctx context.Context, publicID string, kind Kind) error
	Ping(ctx context.Context) error
}

// FromFileHeader opens a multipart file as an Upload. The caller closes the returned file.
// Temporary files backing the form are removed by net/http once the request completes.
func FromFileHeader(header *multipart.FileHeader, kind Kind, maxBytes int64) (Upload, io.Closer, error) {
	if header == nil || header.Size == 0 {
		return Upload{}, nil, ErrEmptyUpload
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return Upload{}, nil, fmt.Errorf("media.open.%s: %w", kind, ErrTooLarge)
	}
	file, err := header.Open()
	if err != nil {
		return Upload{}, nil, fmt.Errorf("media.open.%s: %w", kind, err)
	}
	upload := Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		Kind:        kind,
	}
	if sniffErr := sniff(&upload); sniffErr != nil {
		_ = file.Close()
		return Upload{}, nil, sniffErr
	}
	return upload, file, nil
}

func sniff(upload *Upload) error {
	detected, err := mimetype.DetectReader(upload.Body)
	if err != nil {
		return fmt.Errorf("media.sniff.%s: %w", upload.Kind, err)
	}
	if _, seekErr := upload.Body.Seek(0, io.SeekStart); seekErr != nil {
		return fmt.Errorf("media.sniff.%s: %w", upload.Kind, seekErr)
	}
	if !matchesKind(detected, upload.Kind) {
		return fmt.Errorf("media.sniff.%s: %s: %w", upload.Kind, detected.String(), ErrUnexpectedContent)
	}
	upload.ContentType = detected.String()
	return nil
}

func matchesKind(detected *mimetype.MIME, kind Kind) bool {
	for current := detected; current != nil; current = current.Parent() {
		if strings.HasPrefix(current.String(), string(kind)+"/") {
			return true
		}
	}
	return false
}

func extensionFor(upload Upload) string {
	if detected := mimetype.Lookup(upload.ContentType); detected != nil && detected.Extension() != "" {
		return detected.Extension()
	}
	if index := strings.LastIndex(upload.Name, "."); index >= 0 && index < len(upload.Name)-1 {
		return strings.ToLower(upload.Name[index:])
	}
	return ""
}
