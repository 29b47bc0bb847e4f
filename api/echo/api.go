// Package echo exposes the HTTP API surface.
package echo

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/kerja/auth"
	"go.pilab.hu/kerja/domain"
	"go.pilab.hu/kerja/errors"
)

// API struct to hold dependencies.
type API struct {
	auth *auth.Service
	jobs domain.JobRepository
}

// NewAPI initializes the HTTP API.
func NewAPI(authService *auth.Service, jobs domain.JobRepository) *API {
	return &API{
		auth: authService,
		jobs: jobs,
	}
}

// RegisterRoutes registers the application routes.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/login", a.LoginHandler)
	e.POST("/api/verify", a.VerifyHandler)
	e.GET("/api/profile", a.ProfileHandler)
	e.POST("/api/logout", a.LogoutHandler)

	e.GET("/api/jobs", a.JobsHandler)
	e.GET("/api/jobs/:id", a.JobHandler)

	e.GET("/healthz", a.HealthHandler)
}

type loginRequest struct {
	Phone string `json:"phone"`
}

type verifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(code string) int {
	switch code {
	case errors.InvalidInput, errors.ChallengeNotFound, errors.InvalidCode:
		return http.StatusBadRequest
	case errors.Unauthorized, errors.SessionExpired:
		return http.StatusUnauthorized
	case errors.ProviderUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) errorResponse(c echo.Context, err error) error {
	var authErr *errors.AuthError
	if !stderrors.As(err, &authErr) {
		log.Error().Err(err).Msg("unclassified error reached the API boundary")
		authErr = errors.NewServerError("internal error")
	}
	return c.JSON(statusFor(authErr.Code), authErr)
}

// LoginHandler starts a login: it requests a one-time code for the phone
// number in the body.
func (a *API) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidInput("malformed request body"))
	}

	if err := a.auth.BeginLogin(c.Request().Context(), req.Phone); err != nil {
		return a.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "one-time code sent",
	})
}

// VerifyHandler completes a login and returns the issued bearer token.
// The token is the caller's only handle on the session; it is never
// re-derivable from phone and code.
func (a *API) VerifyHandler(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidInput("malformed request body"))
	}

	token, err := a.auth.CompleteLogin(c.Request().Context(), req.Phone, req.Code)
	if err != nil {
		return a.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"appToken": token,
		"message":  "login successful",
	})
}

// ProfileHandler resolves the identity behind the bearer token in the
// Authorization header.
func (a *API) ProfileHandler(c echo.Context) error {
	token := c.Request().Header.Get("Authorization")

	identity, err := a.auth.ResolveProfile(c.Request().Context(), token)
	if err != nil {
		return a.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, identity)
}

// LogoutHandler drops the session. It always succeeds, even for unknown
// or absent tokens.
func (a *API) LogoutHandler(c echo.Context) error {
	token := c.Request().Header.Get("Authorization")

	_ = a.auth.Logout(c.Request().Context(), token)

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// JobsHandler lists the catalog.
func (a *API) JobsHandler(c echo.Context) error {
	list, err := a.jobs.List(c.Request().Context())
	if err != nil {
		return a.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, list)
}

// JobHandler returns one listing by ID.
func (a *API) JobHandler(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
	}

	job, err := a.jobs.GetByID(c.Request().Context(), id)
	if err != nil {
		if stderrors.Is(err, domain.ErrJobNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
		}
		return a.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, job)
}

// HealthHandler reports liveness.
func (a *API) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
