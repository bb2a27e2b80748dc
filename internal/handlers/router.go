package handlers

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/livecast/internal/metrics"
)

type RouterConfig struct {
	AllowedOrigins []string
	// PublicDir holds the browser frontend. Empty or missing disables it.
	PublicDir string
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(cfg RouterConfig, rec *RecordingsHandler, sig *SignalingHandler, m *metrics.Metrics, log *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(cfg.AllowedOrigins))

	router.SetHTMLTemplate(Templates())

	router.GET("/health", sig.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler(m)))

	// Realtime signaling channel
	router.GET("/ws", sig.HandleSignaling)

	// Recordings
	router.POST("/upload-recording", rec.Upload)
	router.POST("/delete-video", rec.Delete)
	router.GET(GalleryPath, rec.Gallery)
	router.GET(FilesPath+"/:name", rec.Serve)
	router.HEAD(FilesPath+"/:name", rec.Serve)
	router.GET("/api/recordings", rec.List)

	router.NoRoute(staticHandler(cfg.PublicDir, log))
	return router
}

func staticHandler(dir string, log *slog.Logger) gin.HandlerFunc {
	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	}
	if dir == "" {
		return notFound
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		log.Warn("Static frontend directory not found, serving API only", "dir", dir)
		return notFound
	}

	files := http.FileServer(http.Dir(dir))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			notFound(c)
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}
