package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/msomdec/ebookshelf/internal/domain"
	"github.com/msomdec/ebookshelf/internal/service"
	"github.com/msomdec/ebookshelf/internal/view"
)

// AuthHandler serves the signup, login and logout forms.
type AuthHandler struct {
	auth         *service.AuthService
	limiter      *service.TokenBucket
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler. limiter may be nil to disable
// login throttling.
func NewAuthHandler(auth *service.AuthService, limiter *service.TokenBucket, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, limiter: limiter, cookieSecure: cookieSecure}
}

// HandleSignupPage renders the signup form.
// GET /signup
func (h *AuthHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, view.SignupPage(popFlash(w, r)))
}

// HandleSignup processes the signup form.
// POST /signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	_, err := h.auth.Signup(r.Context(), r.PostFormValue("email"), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateEmail):
			setFlash(w, r, "Email is already registered.")
		case errors.Is(err, domain.ErrInvalidInput):
			setFlash(w, r, "Signup failed: "+strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": "))
		default:
			slog.Error("signup", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/signup", http.StatusSeeOther)
		return
	}

	setFlash(w, r, "Signup successful. Please log in.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleLoginPage renders the login form.
// GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, view.LoginPage(popFlash(w, r)))
}

// HandleLogin checks the credentials and starts a session.
// POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	key := clientIP(r)
	if h.limiter != nil && !h.limiter.Allow(key) {
		slog.Warn("login throttled", "client", key)
		setFlash(w, r, "Too many login attempts. Please wait a minute and try again.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	token, user, err := h.auth.Login(r.Context(), r.PostFormValue("email_or_username"), r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			setFlash(w, r, "Invalid credentials. Please try again.")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		slog.Error("login user", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if h.limiter != nil {
		h.limiter.Reset(key)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400, // 24 hours
	})
	slog.Info("user logged in", "email", user.Email)

	setFlash(w, r, "Login successful!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the auth cookie.
// GET /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	setFlash(w, r, "You have been logged out.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
