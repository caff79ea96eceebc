package handler

import (
	"errors"
	"net/http"

	"kiosk/internal/logger"
	"kiosk/internal/middleware"
)

// LoginHandler handles POST /auth/login by validating password and issuing a session cookie.
func LoginHandler(auth *middleware.Auth, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.Login(r.FormValue("password"))
		if err != nil {
			logger.Warning("Failed admin login from %s: %v", r.RemoteAddr, err)
			if errors.Is(err, middleware.ErrAuthDisabled) {
				http.Error(w, "Admin access disabled", http.StatusForbidden)
				return
			}
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int(middleware.SessionTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		logger.Info("Admin logged in from %s", r.RemoteAddr)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// LogoutHandler ends the admin session and clears the cookie.
func LogoutHandler(auth *middleware.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(middleware.SessionCookie); err == nil {
			auth.Logout(cookie.Value)
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
