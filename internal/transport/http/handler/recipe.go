package handler

import (
	"errors"
	"html/template"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsvc "pantrycam/internal/app"
	"pantrycam/internal/transport/http/middleware"
)

const (
	FlashNoFilePart      = "No file part"
	FlashNoSelectedFile  = "No selected file"
	FlashProcessingError = "Error processing image: the recipe service could not analyze this photo, please try again"
	FlashNoResults       = "No recipe results found, please upload an image first"

	imageField      = "image"
	multipartMemory = 8 << 20
)

type RecipeHandler struct {
	recipes *appsvc.RecipeService
	logger  *zap.Logger
}

func NewRecipeHandler(recipes *appsvc.RecipeService, logger *zap.Logger) *RecipeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipeHandler{recipes: recipes, logger: logger}
}

func (h *RecipeHandler) Index(c *gin.Context) {
	var flashes []string
	if s := middleware.CurrentSession(c); s != nil {
		flashes = s.PopFlashes()
		h.saveSession(c)
	}

	allowed := h.recipes.AllowedExtensions()
	accept := make([]string, 0, len(allowed))
	for _, ext := range allowed {
		accept = append(accept, "."+ext)
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Flashes": flashes,
		"Allowed": strings.Join(allowed, ", "),
		"Accept":  strings.Join(accept, ","),
	})
}

func (h *RecipeHandler) Upload(c *gin.Context) {
	s := middleware.CurrentSession(c)

	file, err := formFile(c.Request, imageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
			return
		}
		h.logger.Warn("parse upload form failed", zap.Error(err))
	}

	if _, err := h.recipes.ProcessUpload(c.Request.Context(), s.ID, file); err != nil {
		h.redirectWithFlash(c, h.flashFor(err, s.ID))
		return
	}

	h.saveSession(c)
	c.Redirect(http.StatusFound, "/results")
}

func (h *RecipeHandler) Results(c *gin.Context) {
	s := middleware.CurrentSession(c)

	html, err := h.recipes.Result(c.Request.Context(), s.ID)
	if err != nil {
		if !errors.Is(err, appsvc.ErrNoResult) {
			h.logger.Error("load recipe result failed", zap.String("session_id", s.ID), zap.Error(err))
		}
		h.redirectWithFlash(c, FlashNoResults)
		return
	}

	h.saveSession(c)
	c.HTML(http.StatusOK, "results.html", gin.H{
		// rendered from markdown without raw HTML passthrough
		"Recipes": template.HTML(html),
	})
}

func (h *RecipeHandler) flashFor(err error, sessionID string) string {
	switch {
	case errors.Is(err, appsvc.ErrNoFilePart):
		return FlashNoFilePart
	case errors.Is(err, appsvc.ErrNoSelectedFile):
		return FlashNoSelectedFile
	case errors.Is(err, appsvc.ErrFileTypeNotAllowed):
		return "Allowed file types are " + strings.Join(h.recipes.AllowedExtensions(), ", ")
	default:
		h.logger.Error("process upload failed", zap.String("session_id", sessionID), zap.Error(err))
		return FlashProcessingError
	}
}

func (h *RecipeHandler) redirectWithFlash(c *gin.Context, msg string) {
	if s := middleware.CurrentSession(c); s != nil {
		s.AddFlash(msg)
	}
	h.saveSession(c)
	c.Redirect(http.StatusFound, "/")
}

func (h *RecipeHandler) saveSession(c *gin.Context) {
	if err := middleware.SaveSession(c); err != nil {
		h.logger.Error("save session failed", zap.Error(err))
	}
}

// formFile returns the first file sent under field. A field sent with an
// empty filename is parsed as a plain value, which is reported as a header
// with no filename. A form without the field returns nil.
func formFile(r *http.Request, field string) (*multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	if files := r.MultipartForm.File[field]; len(files) > 0 {
		return files[0], nil
	}
	if _, ok := r.MultipartForm.Value[field]; ok {
		return &multipart.FileHeader{}, nil
	}
	return nil, nil
}
