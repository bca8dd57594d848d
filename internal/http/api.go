package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"attire-api/internal/domain"
	"attire-api/internal/service"
)

// CookieOptions controls the session cookie.
type CookieOptions struct {
	Name     string
	SameSite http.SameSite
	Secure   bool
	MaxAge   time.Duration
}

type Options struct {
	Cookie         CookieOptions
	AllowedOrigins []string
	MaxBodyBytes   int64
	Logger         *logrus.Logger
}

// Handler wires HTTP routes to the account service.
type Handler struct {
	users   service.UserService
	cookie  CookieOptions
	origins []string
	limit   int64
	logger  *logrus.Logger
}

func NewHandler(users service.UserService, opts Options) *Handler {
	if opts.Cookie.Name == "" {
		opts.Cookie.Name = "jwt"
	}
	if opts.Cookie.SameSite == 0 {
		opts.Cookie.SameSite = http.SameSiteNoneMode
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Handler{
		users:   users,
		cookie:  opts.Cookie,
		origins: opts.AllowedOrigins,
		limit:   opts.MaxBodyBytes,
		logger:  opts.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(
		recovery(h.logger),
		requestLogger(h.logger),
		securityHeaders(),
		corsMiddleware(h.origins),
		bodyLimit(h.limit),
	)

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": statusSuccess})
		})

		users := api.Group("/v1/users")
		users.POST("/signup", h.signup)
		users.POST("/login", h.login)
		users.POST("/logout", h.logout)
		users.POST("/forgotPassword", h.forgotPassword)
		users.POST("/resetPassword/:token", h.resetPassword)

		authed := users.Group("", h.requireAuth())
		authed.GET("/me", h.me)
		authed.PATCH("/updatePassword", h.updatePassword)
		authed.PATCH("/updateUser", h.updateUser)
	}

	router.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Can't find "+c.Request.URL.Path+" on this server")
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *Handler) signup(c *gin.Context) {
	var req service.SignupInput
	if !h.bind(c, &req) {
		return
	}

	res, err := h.users.Signup(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.sendToken(c, http.StatusOK, res)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.sendToken(c, http.StatusOK, res)
}

func (h *Handler) logout(c *gin.Context) {
	h.clearCookie(c)
	c.JSON(http.StatusOK, MessageResponse{Status: statusSuccess, Message: "Logged out"})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.users.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Status: statusSuccess, Message: "Reset password email sent successfully"})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req service.ResetPasswordInput
	if !h.bind(c, &req) {
		return
	}

	res, err := h.users.ResetPassword(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.sendToken(c, http.StatusOK, res)
}

func (h *Handler) me(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	profile, err := h.users.GetProfile(c.Request.Context(), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, UserResponse{Status: statusSuccess, Data: UserData{User: *profile}})
}

func (h *Handler) updatePassword(c *gin.Context) {
	var req service.UpdatePasswordInput
	if !h.bind(c, &req) {
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	res, err := h.users.UpdatePassword(c.Request.Context(), user.ID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.sendToken(c, http.StatusOK, res)
}

func (h *Handler) updateUser(c *gin.Context) {
	var req service.ProfileInput
	if !h.bind(c, &req) {
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	res, err := h.users.UpdateProfile(c.Request.Context(), user.ID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.sendToken(c, http.StatusOK, res)
}

// currentUser writes a 401 when no guard ran ahead of the handler.
func (h *Handler) currentUser(c *gin.Context) (*domain.User, bool) {
	user, ok := CurrentUser(c)
	if !ok {
		h.writeError(c, service.ErrNotLoggedIn)
	}
	return user, ok
}

// bind decodes a JSON body into dst. An empty body leaves dst zero so the
// service reports the missing fields.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		fail(c, http.StatusRequestEntityTooLarge, "Request body is too large")
		return false
	}
	fail(c, http.StatusBadRequest, "Invalid request body")
	return false
}

func (h *Handler) sendToken(c *gin.Context, status int, res *service.AuthResult) {
	h.setCookie(c, res.Token, int(h.cookie.MaxAge/time.Second))
	c.JSON(status, AuthResponse{
		Status: statusSuccess,
		Token:  res.Token,
		Data:   UserData{User: res.User},
	})
}

func (h *Handler) clearCookie(c *gin.Context) {
	h.setCookie(c, "", -1)
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}
