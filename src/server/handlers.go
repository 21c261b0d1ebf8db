package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	app "pondserv/src/app"
	cfg "pondserv/src/configuration"

	"github.com/gin-gonic/gin"
)

// AppHandler carries the image endpoints: ingestion, listing and the
// owner-guarded mutations.
type AppHandler struct {
	coordinator *app.Coordinator
	analyzer    app.ContentAnalyzer
	uploadDir   string
	maxFileSize int64
}

func NewHandler(coordinator *app.Coordinator, analyzer app.ContentAnalyzer, config *cfg.Properties) *AppHandler {
	if err := os.MkdirAll(config.Upload.Dir, 0o755); err != nil {
		log.Printf("can not create upload dir %s: %v", config.Upload.Dir, err)
	}
	return &AppHandler{
		coordinator: coordinator,
		analyzer:    analyzer,
		uploadDir:   config.Upload.Dir,
		maxFileSize: config.Upload.MaxFileSize,
	}
}

func (a *AppHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Server is healthy!"})
}

// statusFor maps the error taxonomy onto HTTP statuses. Anything outside the
// known kinds is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, app.ErrNotFound), errors.Is(err, app.ErrOwnerNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}

// PostUpload ingests a multipart file: saved to the scratch dir, uploaded to
// durable storage, analyzed and persisted. The scratch copy is removed by
// the coordinator no matter how the pipeline ends.
func (a *AppHandler) PostUpload(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}
	if !strings.HasPrefix(app.MimeTypeFor(header.Filename), "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only image files are allowed!"})
		return
	}
	if header.Size > a.maxFileSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("File exceeds the %d byte limit", a.maxFileSize)})
		return
	}

	userID := requesterID(c)
	localPath := filepath.Join(a.uploadDir, fmt.Sprintf("%s_%d%s",
		userID, time.Now().UnixMilli(), strings.ToLower(filepath.Ext(header.Filename))))
	if err := c.SaveUploadedFile(header, localPath); err != nil {
		log.Printf("can not save upload to %s: %v", localPath, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	image, err := a.coordinator.Ingest(c.Request.Context(), userID, app.MediaInput{LocalPath: localPath})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Uploaded and analyzed!", "image": image})
}

// PostAnalyze ingests a remote URL. Storage is skipped; the URL is analyzed
// in place and the record is created even when analysis degrades.
func (a *AppHandler) PostAnalyze(c *gin.Context) {
	var body AnalyzeBody
	if err := c.BindJSON(&body); err != nil || body.ImageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image URL provided"})
		return
	}

	image, err := a.coordinator.Ingest(c.Request.Context(), requesterID(c), app.MediaInput{RemoteURL: body.ImageURL})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Analyzed!", "image": image})
}

func (a *AppHandler) GetImages(c *gin.Context) {
	images, err := a.coordinator.ListImages(c.Request.Context(), requesterID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if images == nil {
		images = []app.Image{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "images": images})
}

func (a *AppHandler) DeleteImage(c *gin.Context) {
	err := a.coordinator.Delete(c.Request.Context(), requesterID(c), c.Param("imageId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Image deleted successfully"})
}

func (a *AppHandler) PutDescription(c *gin.Context) {
	var body DescriptionBody
	if err := c.BindJSON(&body); err != nil || body.UserDescription == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No description provided"})
		return
	}

	image, err := a.coordinator.UpdateInfo(c.Request.Context(), requesterID(c), c.Param("imageId"), body.UserDescription)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Description updated successfully", "image": image})
}

// PostTestUpload is an analyze-only probe: the file is classified and run
// through the analyzer, nothing is stored or persisted.
func (a *AppHandler) PostTestUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	localPath := filepath.Join(a.uploadDir, fmt.Sprintf("test_%d%s",
		time.Now().UnixMilli(), strings.ToLower(filepath.Ext(header.Filename))))
	if err := c.SaveUploadedFile(header, localPath); err != nil {
		log.Printf("can not save upload to %s: %v", localPath, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer func() {
		if err := os.Remove(localPath); err != nil {
			log.Printf("can not remove temp file %s: %v", localPath, err)
		}
	}()

	analysis := a.analyzer.Analyze(c.Request.Context(), localPath)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"tags":        analysis.Tags,
		"description": analysis.Description,
		"filePath":    localPath,
	})
}
