package handlers

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/livecast/internal/metrics"
	"github.com/mossy-p/livecast/internal/models"
	"github.com/mossy-p/livecast/internal/recordings"
)

const (
	GalleryPath = "/videos5713"
	FilesPath   = GalleryPath + "/files"

	galleryTemplate = "gallery.html"
	uploadField     = "recording"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates returns the HTML templates the router must be given via
// SetHTMLTemplate.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

var contentTypes = map[string]string{
	"webm": "video/webm",
	"mp4":  "video/mp4",
	"mkv":  "video/x-matroska",
	"ogg":  "video/ogg",
	"mov":  "video/quicktime",
}

// RecordingsHandler exposes the recording store over HTTP.
type RecordingsHandler struct {
	store          *recordings.Store
	maxUploadBytes int64
	metrics        *metrics.Metrics
	log            *slog.Logger
}

func NewRecordingsHandler(store *recordings.Store, maxUploadBytes int64, m *metrics.Metrics, log *slog.Logger) *RecordingsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RecordingsHandler{
		store:          store,
		maxUploadBytes: maxUploadBytes,
		metrics:        m,
		log:            log.With("component", "recordings_http"),
	}
}

// Upload stores the multipart "recording" file, named after the optional
// "title" field.
func (h *RecordingsHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			h.metrics.Inc(metrics.RecordingRejected)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Recording too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fh, err := c.FormFile(uploadField)
	if err != nil {
		h.metrics.Inc(metrics.RecordingRejected)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Recording too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No recording file received"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.metrics.Inc(metrics.RecordingUploadFailed)
		h.log.Error("Failed to open uploaded file", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer f.Close()

	rec, err := h.store.Save(c.Request.Context(), recordings.Upload{
		Title:    c.PostForm("title"),
		Filename: fh.Filename,
		Body:     f,
	})
	if err != nil {
		if recordings.IsValidation(err) {
			h.metrics.Inc(metrics.RecordingRejected)
		} else {
			h.metrics.Inc(metrics.RecordingUploadFailed)
		}
		h.fail(c, err)
		return
	}

	h.metrics.Inc(metrics.RecordingUploaded)
	c.JSON(http.StatusOK, models.UploadRecordingResponse{
		Message:   "Recording saved",
		Recording: rec,
	})
}

type galleryItem struct {
	Name        string
	URL         string
	DownloadURL string
	Size        string
	CreatedAt   string
}

// Gallery renders the HTML list of recordings.
func (h *RecordingsHandler) Gallery(c *gin.Context) {
	recs, err := h.store.List(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list recordings", "error", err)
		c.String(http.StatusInternalServerError, "Failed to list recordings")
		return
	}

	items := make([]galleryItem, 0, len(recs))
	for _, rec := range recs {
		u := FileURL(rec.Name)
		items = append(items, galleryItem{
			Name:        rec.Name,
			URL:         u,
			DownloadURL: u + "?download=1",
			Size:        formatSize(rec.Size),
			CreatedAt:   rec.CreatedAt.UTC().Format(time.DateTime + " MST"),
		})
	}

	c.HTML(http.StatusOK, galleryTemplate, gin.H{
		"Items": items,
		"Count": len(items),
	})
}

// List returns the recordings as JSON, newest first.
func (h *RecordingsHandler) List(c *gin.Context) {
	recs, err := h.store.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ListRecordingsResponse{
		Recordings: recs,
		Count:      len(recs),
	})
}

// Serve streams a recording. Range requests get 206 responses.
func (h *RecordingsHandler) Serve(c *gin.Context) {
	media, err := h.store.Open(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer media.Content.Close()

	if ct, ok := contentTypes[media.Ext]; ok {
		c.Header("Content-Type", ct)
	}
	if c.Query("download") != "" {
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": media.Name}))
	}

	h.metrics.Inc(metrics.RecordingServed)
	http.ServeContent(c.Writer, c.Request, media.Name, media.ModTime, media.Content)
}

// Delete removes the recording named by the "filename" form field. Browsers
// submitting the gallery form are redirected back to it.
func (h *RecordingsHandler) Delete(c *gin.Context) {
	name := c.PostForm("filename")
	if err := h.store.Delete(c.Request.Context(), name); err != nil {
		h.fail(c, err)
		return
	}
	h.metrics.Inc(metrics.RecordingDeleted)

	if strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.Redirect(http.StatusSeeOther, GalleryPath)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Recording deleted", "name": name})
}

func (h *RecordingsHandler) fail(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Recording too large"})
	case errors.Is(err, recordings.ErrEmptyUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No recording data received"})
	case errors.Is(err, recordings.ErrMissingName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
	case errors.Is(err, recordings.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filename"})
	case errors.Is(err, recordings.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Recording not found"})
	default:
		h.log.Error("Recording storage failure", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage failure"})
	}
}

// FileURL is the playback URL of a stored recording.
func FileURL(name string) string {
	return FilesPath + "/" + url.PathEscape(name)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
