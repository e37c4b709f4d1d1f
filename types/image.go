package types

import (
	"io"

	"github.com/tradepost/tradepost/id"
	"github.com/tradepost/tradepost/validator"
)

const MaxImageSize = 5 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ImageUpload is a message image on its way to object storage.
type ImageUpload struct {
	Path        string
	ContentType string
	FileSize    int64

	reader io.Reader
}

func NewImageUpload(contentType string, fileSize int64, r io.Reader) ImageUpload {
	path := id.Generate() + imageExtensions[contentType]
	return ImageUpload{
		Path:        path,
		ContentType: contentType,
		FileSize:    fileSize,
		reader:      r,
	}
}

func (u ImageUpload) Reader() io.Reader {
	return u.reader
}

func (u *ImageUpload) Validate() error {
	v := validator.New()

	if _, ok := imageExtensions[u.ContentType]; !ok {
		v.AddError("ContentType", "Image must be a JPEG, PNG or WebP")
	}
	if u.FileSize <= 0 {
		v.AddError("FileSize", "Image is empty")
	}
	if u.FileSize > MaxImageSize {
		v.AddError("FileSize", "Image must be at most 5 MB")
	}

	return v.AsError()
}
