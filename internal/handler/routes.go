package handler

import (
	"net/http"

	"github.com/msomdec/ebookshelf/internal/service"
	"github.com/msomdec/ebookshelf/internal/view"
)

// Options configures RegisterRoutes.
type Options struct {
	Auth           *service.AuthService
	Library        *service.LibraryService
	Covers         *service.CoverService
	LoginLimiter   *service.TokenBucket // nil disables throttling
	CookieSecure   bool
	MaxUploadBytes int64
	WebDAV         bool
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, opts Options) {
	authHandler := NewAuthHandler(opts.Auth, opts.LoginLimiter, opts.CookieSecure)
	libraryHandler := NewLibraryHandler(opts.Library, opts.Covers, opts.MaxUploadBytes)

	mux.HandleFunc("GET /healthz", HandleHealthz)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(view.Static())))

	// Auth pages
	mux.HandleFunc("GET /signup", authHandler.HandleSignupPage)
	mux.HandleFunc("POST /signup", authHandler.HandleSignup)
	mux.HandleFunc("GET /login", authHandler.HandleLoginPage)
	mux.HandleFunc("POST /login", authHandler.HandleLogin)
	mux.HandleFunc("GET /logout", authHandler.HandleLogout)

	// Collection (auth required)
	protected := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(opts.Auth, h)
	}
	mux.Handle("POST /upload/{path...}", protected(libraryHandler.HandleUpload))
	mux.Handle("GET /books/{path...}", protected(libraryHandler.HandleBook))
	mux.Handle("GET /cover/{path...}", protected(libraryHandler.HandleCover))
	mux.Handle("GET /download_dir/{path...}", protected(libraryHandler.HandleDownloadDir))
	mux.Handle("GET /zip/{path...}", protected(libraryHandler.HandleZip))
	mux.Handle("GET /browse/{path...}", protected(libraryHandler.HandleIndex))
	mux.Handle("GET /{path...}", protected(libraryHandler.HandleIndex))

	// Read-only WebDAV. Write methods match no pattern and get 405.
	if opts.WebDAV {
		dav := NewWebDAVHandler(opts.Library.Root(), opts.Auth, opts.LoginLimiter)
		for _, method := range []string{http.MethodGet, http.MethodOptions, "PROPFIND"} {
			mux.Handle(method+" "+davPrefix+"/", dav)
		}
	}
}
