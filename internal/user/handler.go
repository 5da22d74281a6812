package user

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/eleven-am/civic311/internal/auth"
	"github.com/eleven-am/civic311/internal/dto"
	"github.com/eleven-am/civic311/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	identity IdentityProvider
	logger   *slog.Logger
}

func NewHandler(identity IdentityProvider, logger *slog.Logger) *Handler {
	return &Handler{
		identity: identity,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/signup", h.Signup)
	g.POST("/login", h.Login)
}

func (h *Handler) RegisterProfileRoutes(g *echo.Group, authenticate echo.MiddlewareFunc) {
	g.GET("/profile", h.Profile, authenticate)
}

func toUserResponse(rec *Record) dto.UserResponse {
	return dto.UserResponse{
		UID:           rec.UID,
		Email:         rec.Email,
		DisplayName:   rec.DisplayName,
		EmailVerified: rec.EmailVerified,
	}
}

// Signup godoc
// @Summary      Create an account
// @Description  Registers a user with the identity provider and returns a custom token for immediate sign-in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      dto.SignupRequest  true  "Account details"
// @Success      201      {object}  dto.AuthResponse
// @Failure      400      {object}  dto.ErrorResponse
// @Failure      409      {object}  dto.ErrorResponse
// @Failure      500      {object}  dto.ErrorResponse
// @Router       /auth/signup [post]
func (h *Handler) Signup(c echo.Context) error {
	var req dto.SignupRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "Invalid request body")
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return shared.BadRequest("missing_credentials", "Email and password are required")
	}
	if len(req.Password) < MinPasswordLength {
		return shared.BadRequest("password_too_short", "Password must be at least 6 characters long")
	}
	if !ValidEmail(req.Email) {
		return shared.BadRequest("invalid_email", "Invalid email format")
	}

	ctx := c.Request().Context()
	rec, err := h.identity.CreateUser(ctx, NewUser{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: strings.TrimSpace(req.DisplayName),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailExists):
			return shared.Conflict("email_exists", "Email already exists")
		case errors.Is(err, ErrInvalidEmail):
			return shared.BadRequest("invalid_email", "Invalid email format")
		case errors.Is(err, ErrWeakPassword):
			return shared.BadRequest("weak_password", "Password is too weak")
		}
		h.logger.Error("signup failed", "error", err, "provider", h.identity.Name())
		return shared.InternalError("internal_error", "Internal server error")
	}

	token, err := h.identity.CustomToken(ctx, rec)
	if err != nil {
		h.logger.Error("failed to create custom token", "error", err, "uid", rec.UID)
		return shared.InternalError("internal_error", "Internal server error")
	}

	h.logger.Info("user created", "uid", rec.UID)
	return c.JSON(http.StatusCreated, dto.AuthResponse{
		Message:     "User created successfully",
		User:        toUserResponse(rec),
		CustomToken: token,
	})
}

// Login godoc
// @Summary      Sign in
// @Description  Verifies the credentials with the identity provider and returns a custom token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      dto.LoginRequest  true  "Credentials"
// @Success      200      {object}  dto.AuthResponse
// @Failure      400      {object}  dto.ErrorResponse
// @Failure      401      {object}  dto.ErrorResponse
// @Failure      500      {object}  dto.ErrorResponse
// @Router       /auth/login [post]
func (h *Handler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "Invalid request body")
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return shared.BadRequest("missing_credentials", "Email and password are required")
	}

	ctx := c.Request().Context()
	rec, err := h.identity.VerifyPassword(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInvalidCredentials) {
			return shared.Unauthorized("invalid_credentials", "Invalid email or password")
		}
		h.logger.Error("login failed", "error", err, "provider", h.identity.Name())
		return shared.InternalError("internal_error", "Internal server error")
	}

	token, err := h.identity.CustomToken(ctx, rec)
	if err != nil {
		h.logger.Error("failed to create custom token", "error", err, "uid", rec.UID)
		return shared.InternalError("internal_error", "Internal server error")
	}

	return c.JSON(http.StatusOK, dto.AuthResponse{
		Message:     "Login successful",
		User:        toUserResponse(rec),
		CustomToken: token,
	})
}

// Profile godoc
// @Summary      Get current user
// @Description  Returns the profile carried by the verified bearer token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  dto.ProfileResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /profile [get]
func (h *Handler) Profile(c echo.Context) error {
	claims := auth.GetClaims(c)
	if claims == nil {
		return shared.Unauthorized("auth_required", "User not authenticated")
	}

	return c.JSON(http.StatusOK, dto.ProfileResponse{
		Message: "Profile retrieved successfully",
		User: dto.ProfileUser{
			UID:         claims.UID,
			Email:       claims.Email,
			DisplayName: claims.Name,
		},
	})
}
