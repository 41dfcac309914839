package enrollment

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/coursehub/internal/catalog"
	"github.com/bissquit/coursehub/internal/domain"
	"github.com/bissquit/coursehub/internal/identity"
	"github.com/bissquit/coursehub/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the enrollment module.
type Handler struct {
	service   *Service
	validator *validator.Validate
	baseURL   string
}

// NewHandler creates a new enrollment handler. baseURL has the same meaning
// as for catalog.NewHandler.
func NewHandler(service *Service, baseURL string) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
		baseURL:   baseURL,
	}
}

// RegisterRoutes registers enrollment routes. They require authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/user-enrolled-courses", h.ListEnrolled)
	r.Put("/enroll-course", h.Enroll)
	r.Delete("/unenroll-course/{id}", h.Unenroll)
}

// EnrollRequest represents enroll request body.
type EnrollRequest struct {
	CourseID string `json:"courseId" validate:"required"`
}

// EnrollResponse represents enroll response.
type EnrollResponse struct {
	Message string        `json:"message"`
	Course  domain.Course `json:"course"`
}

// EnrolledCoursesResponse represents the enrolled courses listing.
type EnrolledCoursesResponse struct {
	EnrolledCourses []domain.Course `json:"enrolledCourses"`
}

// Enroll handles PUT /enroll-course.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "Course ID is required.")
		return
	}

	course, err := h.service.Enroll(r.Context(), httputil.GetUserID(r.Context()), req.CourseID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, EnrollResponse{
		Message: "Course enrolled successfully!",
		Course:  *course,
	})
}

// Unenroll handles DELETE /unenroll-course/{id}.
func (h *Handler) Unenroll(w http.ResponseWriter, r *http.Request) {
	err := h.service.Unenroll(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Message(w, http.StatusOK, "Course unenrolled successfully!")
}

// ListEnrolled handles GET /user-enrolled-courses.
func (h *Handler) ListEnrolled(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.ListEnrolled(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, EnrolledCoursesResponse{
		EnrolledCourses: catalog.WithAbsoluteImageURLs(courses, h.BaseURL(r)),
	})
}

// BaseURL returns the configured public base URL or the request's own.
func (h *Handler) BaseURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	return httputil.RequestBaseURL(r)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrCourseIDRequired, Status: http.StatusBadRequest, Message: "Course ID is required."},
		{Error: ErrCourseNotFound, Status: http.StatusNotFound, Message: "Course not found."},
		{Error: identity.ErrUserNotFound, Status: http.StatusNotFound, Message: "User not found."},
		{Error: ErrAlreadyEnrolled, Status: http.StatusConflict, Message: "User is already enrolled in this course."},
		{Error: ErrNotEnrolled, Status: http.StatusNotFound, Message: "Course not found in user's enrolled courses."},
	})
}
