package http

import (
	"encoding/json"
	"io"
	stdhttp "net/http"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"newsroom/app/internal/cms"
)

// The multipart article endpoints are registered straight on the mux because
// Huma does not model multipart form posts. They speak the same JSON error
// vocabulary as the Huma handlers.
func (s *Server) registerUploadRoutes() {
	s.mux.HandleFunc("POST /admin/articles", s.handleArticleCreate)
	s.mux.HandleFunc("PUT /admin/articles/{id}", s.handleArticleUpdate)
}

func (s *Server) handleArticleCreate(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	input, upload, cleanup, ok := s.parseArticleForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	article, err := s.articles.Create(r.Context(), input, upload)
	if err != nil {
		s.writeArticleError(w, r, err)
		return
	}

	s.writeJSON(w, stdhttp.StatusCreated, map[string]any{"id": article.ID, "status": "created"})
}

func (s *Server) handleArticleUpdate(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		s.writeJSON(w, stdhttp.StatusBadRequest, map[string]any{"error": "Invalid article id"})
		return
	}

	input, upload, cleanup, ok := s.parseArticleForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	if err := s.articles.Update(r.Context(), uint(id), input, upload); err != nil {
		s.writeArticleError(w, r, err)
		return
	}

	s.writeJSON(w, stdhttp.StatusOK, map[string]any{"id": uint(id), "status": "saved"})
}

// parseArticleForm collects and validates the multipart article form. When an
// image part is present the file is copied to a temporary path for the
// repository to process; cleanup removes that temporary file.
func (s *Server) parseArticleForm(w stdhttp.ResponseWriter, r *stdhttp.Request) (cms.ArticleInput, *cms.ImageUpload, func(), bool) {
	noop := func() {}

	r.Body = stdhttp.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.writeJSON(w, stdhttp.StatusRequestEntityTooLarge, map[string]any{"error": "File too big"})
		return cms.ArticleInput{}, nil, noop, false
	}

	categoryID, _ := strconv.ParseUint(r.FormValue("category_id"), 10, 32)
	memberID, _ := strconv.ParseUint(r.FormValue("member_id"), 10, 32)
	published := r.FormValue("published") == "1" || r.FormValue("published") == "true"

	input := cms.ArticleInput{
		Title:      r.FormValue("title"),
		Summary:    r.FormValue("summary"),
		Content:    r.FormValue("content"),
		CategoryID: uint(categoryID),
		MemberID:   uint(memberID),
		Published:  published,
	}

	fieldErrors := validateArticleInput(input)

	var upload *cms.ImageUpload
	cleanup := noop

	file, header, err := r.FormFile("image")
	switch {
	case err == stdhttp.ErrMissingFile:
		// no upload, nothing to do
	case err != nil:
		s.writeJSON(w, stdhttp.StatusBadRequest, map[string]any{"error": "Invalid upload"})
		return cms.ArticleInput{}, nil, noop, false
	default:
		defer file.Close()

		if message := validateUploadFilename(header.Filename); message != "" {
			fieldErrors["image_file"] = message
			break
		}

		alt := r.FormValue("image_alt")
		if !isText(alt, 1, altMax) {
			fieldErrors["image_alt"] = "Alt text must be 1-254 characters"
			break
		}

		tempPath, err := s.spoolUpload(file)
		if err != nil {
			s.recordError(r.Context(), err, "spooling upload", logrus.Fields{"upload": header.Filename})
			s.writeJSON(w, stdhttp.StatusInternalServerError, map[string]any{"error": "internal server error"})
			return cms.ArticleInput{}, nil, noop, false
		}
		cleanup = func() { _ = os.Remove(tempPath) }

		if _, err := sniffImageType(tempPath); err != nil {
			fieldErrors["image_file"] = "Wrong file type"
			cleanup()
			cleanup = noop
			break
		}

		upload = &cms.ImageUpload{
			SourcePath:   tempPath,
			OriginalName: header.Filename,
			Alt:          alt,
		}
	}

	if len(fieldErrors) > 0 {
		cleanup()
		s.writeJSON(w, stdhttp.StatusUnprocessableEntity, map[string]any{
			"error":  "Please correct the errors",
			"errors": fieldErrors,
		})
		return cms.ArticleInput{}, nil, noop, false
	}

	return input, upload, cleanup, true
}

// spoolUpload copies the multipart part to a temporary file so the repository
// can read it from disk.
func (s *Server) spoolUpload(file io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "newsroom-upload-*")
	if err != nil {
		return "", eris.Wrap(err, "creating temporary upload file")
	}

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", eris.Wrap(err, "spooling upload to disk")
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", eris.Wrap(err, "closing temporary upload file")
	}

	return tmp.Name(), nil
}

func (s *Server) writeArticleError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	switch {
	case eris.Is(err, cms.ErrDuplicateTitle):
		s.writeJSON(w, stdhttp.StatusConflict, map[string]any{"error": "Article title already exists"})
	case eris.Is(err, cms.ErrArticleNotFound):
		s.writeJSON(w, stdhttp.StatusNotFound, map[string]any{"error": "Article not found"})
	default:
		s.recordError(r.Context(), err, "article write failed", logrus.Fields{"path": r.URL.Path})
		s.writeJSON(w, stdhttp.StatusInternalServerError, map[string]any{"error": "internal server error"})
	}
}

func (s *Server) writeJSON(w stdhttp.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && s.logger != nil {
		s.logger.WithField("error", err.Error()).Error("encoding response failed")
	}
}
