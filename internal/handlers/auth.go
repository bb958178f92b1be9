package handlers

import (
	"editorchat-backend/internal/identity"
	"editorchat-backend/internal/jwt"
	"errors"
	"net/http"
	"time"
)

func Login(w http.ResponseWriter, r *http.Request) {
	type Login struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	var login Login
	if !decodeRequest(w, r, &login) {
		return
	}

	user, err := users.Authenticate(r.Context(), login.Email, login.Password)
	if errors.Is(err, identity.ErrBadCredentials) {
		sugar.Debugf("Failed login for %s", login.Email)
		http.Error(w, "", http.StatusUnauthorized)
		return
	}
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	cookie, err := jwt.CreateSession(user.ID, r.URL.Query().Get("rememberMe") == "true", time.Now())
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	if err := users.Touch(r.Context(), user.ID); err != nil {
		sugar.Warnf("Couldn't record activity of user ID %d: %v", user.ID, err)
	}

	http.SetCookie(w, &cookie)
	writeJSON(w, user)
}

func Logout(w http.ResponseWriter, r *http.Request) {
	if session, err := r.Cookie(jwt.CookieName); err == nil {
		if claims, err := jwt.VerifySession(session.Value); err == nil {
			if err := users.Forget(r.Context(), claims.UserID); err != nil {
				sugar.Warnf("Couldn't drop cached user ID %d: %v", claims.UserID, err)
			}
		}
	}

	cookie := jwt.ClearSession()
	http.SetCookie(w, &cookie)
	w.WriteHeader(http.StatusOK)
}
