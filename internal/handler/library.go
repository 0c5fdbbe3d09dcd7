package handler

import (
	"errors"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/msomdec/ebookshelf/internal/domain"
	"github.com/msomdec/ebookshelf/internal/service"
	"github.com/msomdec/ebookshelf/internal/view"
)

// multipart parts beyond this size are spooled to disk
const uploadMemory = 32 << 20

// LibraryHandler serves the collection pages, downloads, covers and uploads.
type LibraryHandler struct {
	library        *service.LibraryService
	covers         *service.CoverService
	maxUploadBytes int64
}

// NewLibraryHandler creates a new LibraryHandler.
func NewLibraryHandler(library *service.LibraryService, covers *service.CoverService, maxUploadBytes int64) *LibraryHandler {
	return &LibraryHandler{library: library, covers: covers, maxUploadBytes: maxUploadBytes}
}

// HandleIndex renders the directory at the request path.
// GET /{path...}
// GET /browse/{path...}
func (h *LibraryHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	dir, err := h.library.List(r.Context(), id, r.PathValue("path"))
	if err != nil {
		h.fail(w, r, "list directory", err)
		return
	}
	render(w, r, view.LibraryPage(id.Username, dir, popFlash(w, r)))
}

// HandleUpload stores the uploaded books in the directory at the request path.
// POST /upload/{path...}
func (h *LibraryHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	back := service.DirURL(strings.Trim(rel, "/"))

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			setFlash(w, r, "Upload too large.")
			http.Redirect(w, r, back, http.StatusSeeOther)
			return
		}
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file[]"]
	if len(headers) == 0 {
		setFlash(w, r, "No file part")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	files, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		slog.Error("open uploaded file", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	saved, rejected, err := h.library.Upload(r.Context(), IdentityFromContext(r.Context()), rel, files)
	if err != nil {
		h.fail(w, r, "upload books", err)
		return
	}
	slog.Info("books uploaded", "path", rel, "saved", len(saved), "rejected", len(rejected))

	var msgs []string
	if len(saved) > 0 {
		msgs = append(msgs, "Upload successful!")
	}
	if len(rejected) > 0 {
		msgs = append(msgs, "Skipped (only PDF and EPUB files are accepted): "+strings.Join(rejected, ", "))
	}
	setFlash(w, r, msgs...)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func openUploads(headers []*multipart.FileHeader) ([]service.UploadFile, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, f)
		files = append(files, service.UploadFile{Name: fh.Filename, Content: f})
	}
	return files, closeAll, nil
}

// HandleBook sends a file as an attachment.
// GET /books/{path...}
func (h *LibraryHandler) HandleBook(w http.ResponseWriter, r *http.Request) {
	abs, info, err := h.library.ResolveFile(r.Context(), IdentityFromContext(r.Context()), r.PathValue("path"))
	if err != nil {
		h.fail(w, r, "resolve book", err)
		return
	}
	f, err := os.Open(abs)
	if err != nil {
		h.fail(w, r, "open book", err)
		return
	}
	defer f.Close()

	name := info.Name()
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else if domain.FormatFromName(name) == domain.FormatEPUB {
		w.Header().Set("Content-Type", "application/epub+zip")
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// HandleCover sends the book's cover, or the placeholder image.
// GET /cover/{path...}
func (h *LibraryHandler) HandleCover(w http.ResponseWriter, r *http.Request) {
	c, err := h.covers.Cover(r.Context(), IdentityFromContext(r.Context()), r.PathValue("path"))
	if err != nil {
		h.fail(w, r, "cover", err)
		return
	}
	w.Header().Set("Content-Type", c.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(c.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(c.Data)
}

// HandleDownloadDir lists download links for every book in a directory.
// GET /download_dir/{path...}
// Response: {"links": ["/books/...", ...]}
func (h *LibraryHandler) HandleDownloadDir(w http.ResponseWriter, r *http.Request) {
	links, err := h.library.DownloadLinks(r.Context(), IdentityFromContext(r.Context()), r.PathValue("path"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPathEscape):
			writeError(w, http.StatusBadRequest, "Invalid path.")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "Directory not found.")
		default:
			h.fail(w, r, "download links", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": links})
}

// HandleZip streams a directory's books as one zip archive.
// GET /zip/{path...}
func (h *LibraryHandler) HandleZip(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	dir, err := h.library.List(r.Context(), id, r.PathValue("path"))
	if err != nil {
		h.fail(w, r, "list directory for zip", err)
		return
	}

	name := "library"
	if dir.Path != "" {
		name = path.Base(dir.Path)
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name + ".zip"}))

	if err := h.library.WriteZip(r.Context(), id, dir.Path, w); err != nil {
		// headers are already sent
		slog.Error("write zip", "path", dir.Path, "error", err)
	}
}

// fail maps service errors onto responses.
func (h *LibraryHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrPathEscape):
		http.Error(w, "Bad Request", http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, os.ErrNotExist):
		http.NotFound(w, r)
	case errors.Is(err, domain.ErrUnauthorized):
		setFlash(w, r, loginRequiredMessage)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	default:
		slog.Error(op, "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render page", "path", r.URL.Path, "error", err)
	}
}
