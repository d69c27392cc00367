package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	contextUserID = "user_id"
	contextEmail  = "email"
)

// Authenticator hashes passwords and issues and verifies access tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewAuthenticator(secret string, ttl time.Duration, cost int) *Authenticator {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl, cost: cost, now: time.Now}
}

func (a *Authenticator) HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), a.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *Authenticator) CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IssueToken signs an HS256 token whose subject is the user id.
func (a *Authenticator) IssueToken(u User) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(u.ID, 10),
		"email": u.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(a.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken verifies raw and returns the user id and email it carries.
func (a *Authenticator) ParseToken(raw string) (int64, string, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}); err != nil {
		return 0, "", err
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, "", err
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid subject %q", sub)
	}
	email, _ := claims["email"].(string)
	return id, email, nil
}

// RequireAuth rejects requests without a valid Bearer token and stores the
// caller's id under "user_id".
func (a *Authenticator) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing token"})
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid token format"})
			}
			id, email, err := a.ParseToken(strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
			}
			c.Set(contextUserID, id)
			c.Set(contextEmail, email)
			return next(c)
		}
	}
}

func userID(c echo.Context) (int64, error) {
	id, ok := c.Get(contextUserID).(int64)
	if !ok || id <= 0 {
		return 0, errors.New("no authenticated user")
	}
	return id, nil
}
