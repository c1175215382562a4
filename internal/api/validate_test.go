package api

import "testing"

func TestValidateUploadAllowedExtensions(t *testing.T) {
	allowed := []string{"jpg", "jpeg", "png", "webp", "gif", "svg", "bmp", "tiff", "pdf"}
	for _, ext := range allowed {
		if _, err := validateUpload("photo."+ext, ""); err != nil {
			t.Errorf("extension %q should be accepted: %v", ext, err)
		}
	}

	// Case-insensitive
	if _, err := validateUpload("SCAN.PDF", ""); err != nil {
		t.Errorf("uppercase extension should be accepted: %v", err)
	}
	if got, _ := validateUpload("SCAN.PDF", ""); got != "pdf" {
		t.Errorf("expected normalized extension pdf, got %q", got)
	}
}

func TestValidateUploadRejectedExtensions(t *testing.T) {
	for _, name := range []string{"vacation.exe", "notes.txt", "archive.zip", "movie.mp4"} {
		_, err := validateUpload(name, "")
		if err == nil {
			t.Errorf("%q should be rejected", name)
			continue
		}
		if err.reason != "extension_not_allowed" {
			t.Errorf("%q: expected extension_not_allowed, got %q", name, err.reason)
		}
	}
}

func TestValidateUploadMissingExtension(t *testing.T) {
	for _, name := range []string{"README", "photo.", "noext"} {
		_, err := validateUpload(name, "")
		if err == nil {
			t.Errorf("%q should be rejected for missing extension", name)
			continue
		}
		if err.reason != "missing_extension" {
			t.Errorf("%q: expected missing_extension, got %q", name, err.reason)
		}
	}
}

func TestValidateUploadMimeClass(t *testing.T) {
	// Only image/* and application/pdf are acceptable MIME types.
	if _, err := validateUpload("doc.pdf", "text/plain"); err == nil || err.reason != "invalid_mime_type" {
		t.Errorf("text/plain should be rejected as invalid_mime_type, got %v", err)
	}
	if _, err := validateUpload("photo.png", "video/mp4"); err == nil || err.reason != "invalid_mime_type" {
		t.Errorf("video/mp4 should be rejected as invalid_mime_type, got %v", err)
	}
}

func TestValidateUploadMimeExtensionAgreement(t *testing.T) {
	cases := []struct {
		name   string
		mime   string
		wantOK bool
	}{
		{"doc.pdf", "application/pdf", true},
		{"photo.jpg", "image/jpeg", true},
		{"photo.png", "image/png", true},
		// Cross-category combinations are always rejected, in both directions.
		{"doc.pdf", "image/png", false},
		{"photo.jpg", "application/pdf", false},
	}
	for _, tc := range cases {
		_, err := validateUpload(tc.name, tc.mime)
		if tc.wantOK && err != nil {
			t.Errorf("%s + %s should be accepted: %v", tc.name, tc.mime, err)
		}
		if !tc.wantOK && (err == nil || err.reason != "mime_extension_mismatch") {
			t.Errorf("%s + %s should be rejected as mime_extension_mismatch, got %v", tc.name, tc.mime, err)
		}
	}
}

func TestValidateUploadNoMimeProvided(t *testing.T) {
	// An absent or generic MIME type skips the class and agreement checks.
	if _, err := validateUpload("photo.gif", ""); err != nil {
		t.Errorf("missing MIME should be accepted: %v", err)
	}
	if _, err := validateUpload("photo.gif", "application/octet-stream"); err != nil {
		t.Errorf("octet-stream MIME should be treated as absent: %v", err)
	}
}
