package catalog

import (
	"net/http"

	"github.com/bissquit/coursehub/internal/domain"
	"github.com/bissquit/coursehub/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service *Service
	baseURL string
}

// NewHandler creates a new catalog handler. If baseURL is empty, image URLs
// are built from the scheme and host of each request.
func NewHandler(service *Service, baseURL string) *Handler {
	return &Handler{
		service: service,
		baseURL: baseURL,
	}
}

// RegisterRoutes registers catalog routes. They require authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/courses", h.ListCourses)
	r.Get("/courses/{id}", h.GetCourse)
}

// ListCoursesResponse is the body of GET /courses.
type ListCoursesResponse struct {
	Courses []domain.Course `json:"courses"`
}

// ListCourses handles GET /courses.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.ListCourses(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, ListCoursesResponse{
		Courses: WithAbsoluteImageURLs(courses, h.BaseURL(r)),
	})
}

// GetCourse handles GET /courses/{id}.
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.service.GetCourse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, WithAbsoluteImageURL(*course, h.BaseURL(r)))
}

// BaseURL returns the configured public base URL or the one the request
// was addressed to.
func (h *Handler) BaseURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	return httputil.RequestBaseURL(r)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrCourseNotFound, Status: http.StatusNotFound, Message: "Course not found."},
	})
}
