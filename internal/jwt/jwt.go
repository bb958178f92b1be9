package jwt

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "JWT"

// SessionClaims identifies the editor behind a request. Role and name are
// looked up fresh on every request, the token only carries the id.
type SessionClaims struct {
	UserID   int64 `json:"userID,string"`
	Remember bool  `json:"rem"`
	jwt.RegisteredClaims
}

var jwtSecret []byte
var isHttps bool

func Setup(secret string, _isHttps bool) error {
	if len(secret) < 32 {
		return errors.New("jwt secret must be at least 32 characters")
	}
	jwtSecret = []byte(secret)
	isHttps = _isHttps
	return nil
}

func lifetime(remember bool) time.Duration {
	if remember {
		return time.Hour * 24 * 7 * 4 // 4 weeks
	}
	return time.Hour * 12 // one shift
}

// CreateSession signs a token for userID and wraps it in the session
// cookie.
func CreateSession(userID int64, remember bool, now time.Time) (http.Cookie, error) {
	issued := now.UTC()
	expires := issued.Add(lifetime(remember))

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, SessionClaims{
		UserID:   userID,
		Remember: remember,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		return http.Cookie{}, err
	}

	cookie := http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   isHttps,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.Expires = expires
	}

	return cookie, nil
}

// ClearSession returns a cookie that makes the browser drop the session.
func ClearSession() http.Cookie {
	return http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isHttps,
		SameSite: http.SameSiteLaxMode,
	}
}

func VerifySession(signed string) (SessionClaims, error) {
	token, err := jwt.ParseWithClaims(signed, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return SessionClaims{}, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.UserID == 0 {
		return SessionClaims{}, errors.New("invalid token")
	}
	return *claims, nil
}
