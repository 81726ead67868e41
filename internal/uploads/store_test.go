package uploads

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := NewStore(filepath.Join(t.TempDir(), "uploads"), logger)
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	return store
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating image failed: %v", err)
	}
	if err := png.Encode(file, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encoding image failed: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("closing image failed: %v", err)
	}
}

func TestSanitizeBase(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"My Photo!":      "My-Photo-",
		"already-clean":  "already-clean",
		"umlaut_ä_inner": "umlaut---inner",
		"123":            "123",
	}

	for input, want := range cases {
		if got := SanitizeBase(input); got != want {
			t.Errorf("SanitizeBase(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCreateFilenameCountsUpFromTakenNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	name, err := CreateFilename("My Photo!.png", dir)
	if err != nil {
		t.Fatalf("CreateFilename returned error: %v", err)
	}
	if name != "My-Photo-.png" {
		t.Fatalf("expected sanitized base on first allocation, got %q", name)
	}

	if err := os.WriteFile(filepath.Join(dir, "My-Photo-.png"), nil, 0o644); err != nil {
		t.Fatalf("writing placeholder failed: %v", err)
	}

	name, err = CreateFilename("My Photo!.png", dir)
	if err != nil {
		t.Fatalf("CreateFilename returned error: %v", err)
	}
	if name != "My-Photo-1.png" {
		t.Fatalf("expected numeric suffix after collision, got %q", name)
	}

	if err := os.WriteFile(filepath.Join(dir, "My-Photo-1.png"), nil, 0o644); err != nil {
		t.Fatalf("writing placeholder failed: %v", err)
	}

	name, err = CreateFilename("My Photo!.png", dir)
	if err != nil {
		t.Fatalf("CreateFilename returned error: %v", err)
	}
	if name != "My-Photo-2.png" {
		t.Fatalf("expected suffix to keep counting, got %q", name)
	}
}

func TestUniqueFilename(t *testing.T) {
	t.Parallel()

	first := UniqueFilename("Harbour View.JPG")
	second := UniqueFilename("Harbour View.JPG")

	if first == second {
		t.Fatalf("expected distinct names, got %q twice", first)
	}
	if !strings.HasPrefix(first, "Harbour-View-") {
		t.Fatalf("expected sanitized prefix, got %q", first)
	}
	if !strings.HasSuffix(first, ".jpg") {
		t.Fatalf("expected lowercased extension, got %q", first)
	}
}

func TestSaveCropsToThumbnail(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	cases := []struct {
		name string
		w, h int
	}{
		{"wider than target.png", 2400, 800},
		{"taller than target.png", 900, 1600},
		{"smaller than target.png", 300, 200},
	}

	for _, tc := range cases {
		source := filepath.Join(t.TempDir(), tc.name)
		writePNG(t, source, tc.w, tc.h)

		name, err := store.Save(source, tc.name)
		if err != nil {
			t.Fatalf("Save(%q) returned error: %v", tc.name, err)
		}
		if !strings.HasSuffix(name, ".png") {
			t.Fatalf("expected stored name to keep the extension, got %q", name)
		}

		stored, err := os.Open(store.Path(name))
		if err != nil {
			t.Fatalf("opening stored file failed: %v", err)
		}

		img, format, err := image.Decode(stored)
		stored.Close()
		if err != nil {
			t.Fatalf("decoding stored file failed: %v", err)
		}
		if format != "png" {
			t.Fatalf("expected png output for png input, got %q", format)
		}

		bounds := img.Bounds()
		if bounds.Dx() != 1200 || bounds.Dy() != 700 {
			t.Fatalf("Save(%q): expected 1200x700, got %dx%d", tc.name, bounds.Dx(), bounds.Dy())
		}
	}
}

func TestSaveRejectsNonImages(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	source := filepath.Join(t.TempDir(), "notes.png")
	if err := os.WriteFile(source, []byte("not an image at all"), 0o644); err != nil {
		t.Fatalf("writing fixture failed: %v", err)
	}

	if _, err := store.Save(source, "notes.png"); err == nil {
		t.Fatal("expected decode failure for non-image payload")
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("reading uploads dir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no stored files after failed save, got %d", len(entries))
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	source := filepath.Join(t.TempDir(), "photo.png")
	writePNG(t, source, 400, 300)

	name, err := store.Save(source, "photo.png")
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if err := store.Remove(name); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := os.Stat(store.Path(name)); !os.IsNotExist(err) {
		t.Fatalf("expected file to be gone, stat error: %v", err)
	}

	if err := store.Remove(name); err != nil {
		t.Fatalf("Remove of an absent file returned error: %v", err)
	}
	if err := store.Remove(""); err != nil {
		t.Fatalf("Remove of an empty name returned error: %v", err)
	}
}
