// Image type support queries.
package webcodecs

import "strings"

// imageTypes is the closed set of decodable image MIME types.
var imageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// IsImageTypeSupported reports whether mimeType names a decodable image
// format. Parameters after ';' are ignored and matching is
// case-insensitive.
func IsImageTypeSupported(mimeType string) bool {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return imageTypes[strings.ToLower(strings.TrimSpace(mimeType))]
}

// SupportedImageTypes returns the decodable image MIME types, sorted.
func SupportedImageTypes() []string {
	return []string{"image/gif", "image/jpeg", "image/png", "image/webp"}
}
