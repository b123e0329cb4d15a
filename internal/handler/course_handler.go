package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agrisetu/agrisetu-api/internal/middleware"
	"github.com/agrisetu/agrisetu-api/internal/models"
	"github.com/agrisetu/agrisetu-api/internal/service"
	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
	"github.com/agrisetu/agrisetu-api/pkg/response"
)

// CourseHandler serves the course catalog, uploads, ratings and content
// access.
type CourseHandler struct {
	service *service.CourseService
}

// NewCourseHandler creates a new handler.
func NewCourseHandler(svc *service.CourseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List courses
// @Description List the course catalog with instructor names and ratings
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	listings, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listings, nil)
}

// Upload godoc
// @Summary Upload course
// @Description Create a course from a multipart form with optional video and audio files
// @Tags Courses
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Course title"
// @Param description formData string true "Course description"
// @Param price formData number false "Course price"
// @Param language formData string false "Course language"
// @Param video_source formData string true "UPLOADED, YOUTUBE or VIMEO"
// @Param video_url formData string false "External video URL"
// @Param materials formData string false "Materials JSON array"
// @Param video formData file false "Video file for UPLOADED source"
// @Param audio formData file false "Audio guide file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Upload(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	input, err := h.bindUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	course, err := h.service.Upload(c.Request.Context(), claims.UserID, *input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Rate godoc
// @Summary Rate course
// @Description Rate an enrolled course from 1 to 5
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body map[string]int true "Rating"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/rate [post]
func (h *CourseHandler) Rate(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Rating int `json:"rating"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rating payload"))
		return
	}

	if err := h.service.Rate(c.Request.Context(), claims.UserID, service.RateCourseRequest{
		CourseID: c.Param("id"),
		Rating:   payload.Rating,
	}); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Access godoc
// @Summary Access course content
// @Description Get a course with signed media URLs and materials
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/content [get]
func (h *CourseHandler) Access(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	view, err := h.service.Access(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

func (h *CourseHandler) bindUpload(c *gin.Context) (*service.UploadCourseInput, error) {
	price, _ := strconv.ParseFloat(c.PostForm("price"), 64)
	input := &service.UploadCourseInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Price:       price,
		Language:    models.Language(c.PostForm("language")),
		VideoSource: models.VideoSource(c.PostForm("video_source")),
		VideoURL:    c.PostForm("video_url"),
	}

	if raw := c.PostForm("materials"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input.Materials); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid materials payload")
		}
	}

	if file, header, err := c.Request.FormFile("video"); err == nil {
		input.VideoFile = file
		input.VideoFileName = header.Filename
	}
	if file, header, err := c.Request.FormFile("audio"); err == nil {
		input.AudioFile = file
		input.AudioFileName = header.Filename
	}
	return input, nil
}
