package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bissquit/coursehub/internal/domain"
	"github.com/bissquit/coursehub/internal/identity/password"
	"github.com/bissquit/coursehub/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers the public signup and login routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.Me)
}

// SignupRequest represents signup request body. Username is stored as the
// user's display name.
type SignupRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Username string `json:"username" validate:"required,max=255"`
}

// LoginRequest represents login request body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents login response.
type LoginResponse struct {
	Token string            `json:"token"`
	User  domain.PublicUser `json:"user"`
}

// Signup handles POST /signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	_, err := h.service.Signup(r.Context(), SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Username,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Message(w, http.StatusCreated, "User registered successfully.")
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), LoginInput(req))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, LoginResponse{
		Token: result.Token,
		User:  result.User,
	})
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, http.StatusForbidden, httputil.MsgNoToken)
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user.Public())
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrEmailExists, Status: http.StatusConflict, Message: "User already exists."},
		{Error: ErrInvalidEmail, Status: http.StatusUnauthorized, Message: "Invalid email."},
		{Error: ErrInvalidPassword, Status: http.StatusUnauthorized, Message: "Invalid password."},
		{Error: ErrUserNotFound, Status: http.StatusNotFound, Message: "User not found."},
		{Error: password.ErrTooLong, Status: http.StatusBadRequest, Message: "Password must be at most 72 bytes."},
	})
}
