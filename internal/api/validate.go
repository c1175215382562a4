package api

import (
	"path/filepath"
	"strings"
)

// allowedExtensions is the exact accepted extension set: common image
// formats plus PDF. Compared case-insensitively.
var allowedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true,
	"gif": true, "svg": true, "bmp": true, "tiff": true,
	"pdf": true,
}

// uploadError is a validation rejection with its metrics reason label.
type uploadError struct {
	reason  string
	message string
}

func (e *uploadError) Error() string { return e.message }

var (
	errInvalidMimeType = &uploadError{"invalid_mime_type", "file type not supported: only images and PDF are allowed"}
	errMissingExt      = &uploadError{"missing_extension", "file extension missing"}
	errExtNotAllowed   = &uploadError{"extension_not_allowed", "file extension not allowed"}
	errMimeMismatch    = &uploadError{"mime_extension_mismatch", "MIME type does not match file extension"}
)

// fileExtension returns the lowercased extension of name without the dot,
// or "" if name has none.
func fileExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// mimeProvided reports whether declared is a usable client MIME type.
// Multipart parts without a real type commonly carry octet-stream.
func mimeProvided(declared string) bool {
	return declared != "" && declared != "application/octet-stream"
}

// validateUpload cross-checks a declared file name and MIME type and returns
// the normalized extension. Checks run in a fixed order, each a hard
// rejection:
//
//  1. the MIME type, when provided, must be image/* or application/pdf;
//  2. the name must carry an extension;
//  3. the extension must be in the allow-list;
//  4. a provided MIME type must agree with the extension's category
//     (pdf with pdf, image with image) in both directions.
func validateUpload(name, declaredMime string) (string, *uploadError) {
	hasMime := mimeProvided(declaredMime)

	if hasMime {
		if !strings.HasPrefix(declaredMime, "image/") && declaredMime != "application/pdf" {
			return "", errInvalidMimeType
		}
	}

	ext := fileExtension(name)
	if ext == "" {
		return "", errMissingExt
	}
	if !allowedExtensions[ext] {
		return "", errExtNotAllowed
	}

	if hasMime {
		isPdfMime := declaredMime == "application/pdf"
		if ext == "pdf" && !isPdfMime {
			return "", errMimeMismatch
		}
		if ext != "pdf" && isPdfMime {
			return "", errMimeMismatch
		}
	}

	return ext, nil
}
