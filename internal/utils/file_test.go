package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExportFilename(t *testing.T) {
	got := ExportFilename("/photos/sign.jpeg", "out", "cropped", "webp")
	if got != filepath.Join("out", "sign_cropped.webp") {
		t.Errorf("ExportFilename = %q", got)
	}
	got = ExportFilename("https://example.org/a.png", "out", "adjusted", "")
	if got != filepath.Join("out", "capture_adjusted.png") {
		t.Errorf("ExportFilename for URL = %q", got)
	}
}

func TestIsImageFile(t *testing.T) {
	if !IsImageFile("a/B.JPG") || IsImageFile("notes.txt") {
		t.Error("IsImageFile misclassified")
	}
}

func TestEnsureDirAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if FileExists(dir) {
		t.Error("directory reported as file")
	}
	f := filepath.Join(dir, "x.png")
	os.WriteFile(f, []byte("x"), 0644)
	if !FileExists(f) {
		t.Error("file not found")
	}
}

func TestFormatFileSize(t *testing.T) {
	for size, want := range map[int64]string{512: "512 B", 2048: "2.0 KB", 5 * 1024 * 1024: "5.0 MB"} {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", size, got, want)
		}
	}
	if SanitizeFilename(" a:b?. ") != "a_b_" {
		t.Errorf("SanitizeFilename = %q", SanitizeFilename(" a:b?. "))
	}
}
