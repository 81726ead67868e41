package http

import (
	"io"
	stdhttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"newsroom/app/internal/cms"
)

// Field bounds enforced at the presentation boundary. The repositories only
// rely on constraints the database itself enforces.
const (
	titleMax       = 80
	summaryMax     = 254
	contentMax     = 100000
	altMax         = 254
	nameMax        = 24
	descriptionMax = 254
)

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

func isText(value string, min, max int) bool {
	length := utf8.RuneCountInString(value)
	return length >= min && length <= max
}

func validateArticleInput(input cms.ArticleInput) map[string]string {
	fieldErrors := make(map[string]string)

	if !isText(input.Title, 1, titleMax) {
		fieldErrors["title"] = "Title must be 1-80 characters"
	}
	if !isText(input.Summary, 1, summaryMax) {
		fieldErrors["summary"] = "Summary must be 1-254 characters"
	}
	if !isText(input.Content, 1, contentMax) {
		fieldErrors["content"] = "Article must be 1-100,000 characters"
	}
	if input.CategoryID == 0 {
		fieldErrors["category"] = "Please select a category"
	}
	if input.MemberID == 0 {
		fieldErrors["member"] = "Please select an author"
	}

	return fieldErrors
}

func validateCategoryInput(name, description string) map[string]string {
	fieldErrors := make(map[string]string)

	if !isText(name, 1, nameMax) {
		fieldErrors["name"] = "Name must be 1-24 characters"
	}
	if !isText(description, 1, descriptionMax) {
		fieldErrors["description"] = "Description must be 1-254 characters"
	}

	return fieldErrors
}

// validateUploadFilename checks the client filename's extension against the
// allow-list.
func validateUploadFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExtensions[ext] {
		return "Wrong file extension"
	}
	return ""
}

// sniffImageType detects the content type of the file at path from its first
// bytes and reports whether it is an accepted image format.
func sniffImageType(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "opening upload for sniffing: %s", path)
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return "", eris.Wrap(err, "reading upload head")
	}

	contentType := stdhttp.DetectContentType(head[:n])
	if !allowedImageTypes[contentType] {
		return contentType, eris.Errorf("unsupported upload type: %s", contentType)
	}

	return contentType, nil
}
