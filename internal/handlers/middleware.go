package handlers

import (
	"context"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/jwt"
	"editorchat-backend/internal/models"
	"errors"
	"net/http"
	"time"
)

type UserKeyType struct{}

const sessionRenewAfter = 15 * time.Minute

func AllowCors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// UserVerifier authenticates the request from the JWT cookie, records the
// user as active and passes the user on in the request context.
func UserVerifier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtCookie, err := r.Cookie(jwt.CookieName)
		if err != nil {
			sugar.Debug(err)
			http.Error(w, "No jwt cookie was provided", http.StatusUnauthorized)
			return
		}

		claims, err := jwt.VerifySession(jwtCookie.Value)
		if err != nil {
			sugar.Debug(err)
			http.Error(w, "Couldn't verify JWT", http.StatusUnauthorized)
			return
		}

		user, err := users.User(r.Context(), claims.UserID)
		if errors.Is(err, chaterr.ErrNotFound) {
			// account was removed while the cookie was still around
			sugar.Debugf("User ID %d from JWT no longer exists", claims.UserID)
			expired := jwt.ClearSession()
			http.SetCookie(w, &expired)
			http.Error(w, "", http.StatusUnauthorized)
			return
		}
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}

		if err := users.Touch(r.Context(), user.ID); err != nil {
			sugar.Warnf("Couldn't record activity of user ID %d: %v", user.ID, err)
		}

		if time.Since(claims.IssuedAt.Time) >= sessionRenewAfter {
			renewed, err := jwt.CreateSession(claims.UserID, claims.Remember, time.Now())
			if err != nil {
				sugar.Error(err)
				http.Error(w, "Couldn't renew cookie", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &renewed)
		}

		ctx := context.WithValue(r.Context(), UserKeyType{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) models.User {
	return r.Context().Value(UserKeyType{}).(models.User)
}
