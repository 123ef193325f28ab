package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/valetpark/valetpark/internal/auth"
)

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	Auth *auth.Manager
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(m *auth.Manager) *AuthHandler { return &AuthHandler{Auth: m} }

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResp struct {
	Token    string    `json:"token"`
	Expires  time.Time `json:"expires"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

// Login verifies credentials and returns a session token.  All credential
// failures answer with the same generic 401.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Auth.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	token, expires, err := h.Auth.IssueToken(u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, loginResp{
		Token:    token,
		Expires:  expires,
		Username: u.Username,
		Role:     string(u.Role),
	})
}
