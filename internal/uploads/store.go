package uploads

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

const (
	thumbWidth  = 1200
	thumbHeight = 700
	jpegQuality = 80
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// Store owns the uploads directory: it processes incoming images into fixed
// thumbnail crops and keeps stored filenames unique within the directory.
type Store struct {
	dir    string
	logger *logrus.Logger
}

// NewStore constructs a Store rooted at dir, creating the directory if needed.
func NewStore(dir string, logger *logrus.Logger) (*Store, error) {
	if dir == "" {
		return nil, eris.New("uploads directory is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "creating uploads directory: %s", dir)
	}

	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the uploads directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path of a stored file.
func (s *Store) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// Save reads the uploaded image at sourcePath, crops it to the thumbnail
// aspect, and writes the result into the uploads directory under a
// collision-free name derived from originalName. It returns the stored
// filename. The caller is responsible for discarding the file if a later
// database step fails.
func (s *Store) Save(sourcePath, originalName string) (string, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return "", eris.Wrapf(err, "opening upload: %s", sourcePath)
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return "", eris.Wrap(err, "decoding upload")
	}

	cropped := coverCrop(img, thumbWidth, thumbHeight)

	name := UniqueFilename(originalName)
	dest := filepath.Join(s.dir, name)

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "creating upload file: %s", name)
	}

	if err := encodeByExtension(out, cropped, filepath.Ext(name)); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return "", eris.Wrapf(err, "encoding upload: %s", name)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return "", eris.Wrapf(err, "writing upload: %s", name)
	}

	return name, nil
}

// Remove deletes a stored file. A file that is already absent is not an error.
func (s *Store) Remove(filename string) error {
	if filename == "" {
		return nil
	}

	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "removing upload: %s", filename)
	}

	return nil
}

// Discard compensates for a failed database transaction by removing a file
// written moments earlier. Removal problems are logged, never returned.
func (s *Store) Discard(filename string) {
	if err := s.Remove(filename); err != nil && s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"file":  filename,
			"error": err.Error(),
		}).Warn("discarding upload failed")
	}
}

// SanitizeBase replaces every character outside [A-Za-z0-9] with a hyphen.
func SanitizeBase(name string) string {
	return nonAlphanumeric.ReplaceAllString(name, "-")
}

// UniqueFilename derives a stored name from the client filename: the
// sanitized base plus a random suffix, preserving the original extension.
// Two concurrent uploads of the same name cannot collide.
func UniqueFilename(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	base := SanitizeBase(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	return base + "-" + uuid.NewString() + ext
}

// CreateFilename allocates a deterministic name in dir: the sanitized base
// first, then the first free name with an incrementing numeric suffix. The
// existence re-check makes it safe only for a single writer; Save uses
// UniqueFilename instead.
func CreateFilename(originalName, dir string) (string, error) {
	ext := filepath.Ext(originalName)
	base := SanitizeBase(strings.TrimSuffix(filepath.Base(originalName), ext))
	name := base + ext

	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			if os.IsNotExist(err) {
				return name, nil
			}
			return "", eris.Wrapf(err, "checking upload name: %s", name)
		}
		name = fmt.Sprintf("%s%d%s", base, i, ext)
	}
}

// coverCrop scales img to fill w x h and crops the overflow from the centre,
// matching a crop-to-fit thumbnail.
func coverCrop(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	// Largest centred region with the target aspect ratio.
	cropW, cropH := srcW, srcH
	if srcW*h > srcH*w {
		cropW = srcH * w / h
	} else {
		cropH = srcW * h / w
	}

	x0 := b.Min.X + (srcW-cropW)/2
	y0 := b.Min.Y + (srcH-cropH)/2
	srcRect := image.Rect(x0, y0, x0+cropW, y0+cropH)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, srcRect, draw.Over, nil)
	return dst
}

func encodeByExtension(out *os.File, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(out, img)
	case ".gif":
		return gif.Encode(out, img, nil)
	default:
		return jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality})
	}
}
