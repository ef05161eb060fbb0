package http

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"torrentctl/internal/domain"
	"torrentctl/internal/downloader"
	"torrentctl/internal/service"
)

// Handler wires HTTP routes to the download manager.
type Handler struct {
	manager   downloader.Manager
	operators service.OperatorService
	gatherer  prometheus.Gatherer
	jwtSecret []byte
	tokenTTL  time.Duration
	uploadDir string
	logger    *logrus.Entry
}

func NewHandler(manager downloader.Manager, operators service.OperatorService, gatherer prometheus.Gatherer, jwtSecret string, tokenTTL time.Duration, uploadDir string, logger *logrus.Logger) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		manager:   manager,
		operators: operators,
		gatherer:  gatherer,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		uploadDir: uploadDir,
		logger:    logger.WithField("component", "http"),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)
	}

	secured := api.Group("")
	secured.Use(h.authMiddleware())
	{
		secured.GET("/auth/me", h.me)

		secured.POST("/session/pause", h.pauseSession)
		secured.POST("/session/resume", h.resumeSession)

		secured.GET("/torrents", h.listTorrents)
		secured.POST("/torrents", h.addMagnet)
		secured.POST("/torrents/upload", h.uploadTorrent)
		secured.GET("/torrents/:id", h.getTorrent)
		secured.DELETE("/torrents/:id", h.removeTorrent)

		secured.POST("/torrents/:id/pause", h.command(h.manager.Pause))
		secured.POST("/torrents/:id/resume", h.command(h.manager.Resume))
		secured.POST("/torrents/:id/recheck", h.command(h.manager.Recheck))
		secured.POST("/torrents/:id/announce", h.command(h.manager.Announce))
		secured.POST("/torrents/:id/scrape", h.command(h.manager.Scrape))
		secured.POST("/torrents/:id/move", h.moveTorrent)

		secured.GET("/torrents/:id/limits", h.getLimits)
		secured.PUT("/torrents/:id/limits", h.setLimits)
		secured.PUT("/torrents/:id/priorities", h.setPriorities)
		secured.PUT("/torrents/:id/sequential", h.setSequential)

		secured.GET("/torrents/:id/trackers", h.getTrackers)
		secured.PUT("/torrents/:id/trackers", h.replaceTrackers)
		secured.POST("/torrents/:id/trackers", h.addTrackers)

		secured.GET("/torrents/:id/magnet", h.getMagnet)
		secured.GET("/torrents/:id/peers", h.getPeers)
		secured.GET("/torrents/:id/pieces", h.getPieces)
		secured.GET("/torrents/:id/incomplete", h.getIncomplete)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// writeError maps manager errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, downloader.ErrTorrentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, downloader.ErrTorrentExists):
		status = http.StatusConflict
	case errors.Is(err, downloader.ErrInvalidArgument):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// command adapts a fire-and-forget manager call to a route.
func (h *Handler) command(fn func(id string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := fn(id); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": id})
	}
}

func (h *Handler) pauseSession(c *gin.Context) {
	h.manager.PauseAll()
	c.JSON(http.StatusAccepted, gin.H{"paused": true})
}

func (h *Handler) resumeSession(c *gin.Context) {
	h.manager.ResumeAll()
	c.JSON(http.StatusAccepted, gin.H{"paused": false})
}

type addMagnetRequest struct {
	Magnet       string `json:"magnet" binding:"required"`
	DownloadPath string `json:"download_path"`
}

func (h *Handler) addMagnet(c *gin.Context) {
	var req addMagnetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := infoHashFromMagnet(req.Magnet); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid magnet: %v", err)})
		return
	}

	t, err := h.manager.AddMagnet(c.Request.Context(), req.Magnet, req.DownloadPath)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, torrentToResponse(*t))
}

func (h *Handler) uploadTorrent(c *gin.Context) {
	file, err := c.FormFile("torrent")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "torrent file is required"})
		return
	}
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	staged := filepath.Join(h.uploadDir, uuid.NewString()+".torrent")
	if err := c.SaveUploadedFile(file, staged); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer func() {
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			h.logger.Warnf("remove staged upload: %v", err)
		}
	}()

	t, err := h.manager.AddTorrentFile(c.Request.Context(), staged, c.PostForm("download_path"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, torrentToResponse(*t))
}

func (h *Handler) listTorrents(c *gin.Context) {
	torrents, err := h.manager.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]TorrentResponse, len(torrents))
	for i := range torrents {
		resp[i] = torrentToResponse(torrents[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getTorrent(c *gin.Context) {
	t, err := h.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, torrentToResponse(*t))
}

func (h *Handler) removeTorrent(c *gin.Context) {
	id := c.Param("id")
	withFiles, err := strconv.ParseBool(c.DefaultQuery("with_files", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag with_files"})
		return
	}

	if err := h.manager.Remove(c.Request.Context(), id, withFiles); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"removing": id, "with_files": withFiles})
}

type moveRequest struct {
	Path string `json:"path" binding:"required"`
}

func (h *Handler) moveTorrent(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.manager.Move(c.Param("id"), req.Path); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": c.Param("id"), "path": req.Path})
}

type limitsRequest struct {
	Download *int `json:"download"`
	Upload   *int `json:"upload"`
}

func (h *Handler) getLimits(c *gin.Context) {
	down, up, err := h.manager.Limits(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"download": down, "upload": up})
}

func (h *Handler) setLimits(c *gin.Context) {
	var req limitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Download == nil && req.Upload == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "download or upload limit is required"})
		return
	}
	if err := h.manager.SetLimits(c.Param("id"), req.Download, req.Upload); err != nil {
		writeError(c, err)
		return
	}
	h.getLimits(c)
}

type prioritiesRequest struct {
	Priorities []int `json:"priorities" binding:"required"`
}

func (h *Handler) setPriorities(c *gin.Context) {
	var req prioritiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	prios := make([]domain.Priority, len(req.Priorities))
	for i, p := range req.Priorities {
		prios[i] = domain.Priority(p)
	}
	if err := h.manager.PrioritizeFiles(c.Request.Context(), c.Param("id"), prios); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"priorities": req.Priorities})
}

type sequentialRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *Handler) setSequential(c *gin.Context) {
	var req sequentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.manager.SetSequential(c.Param("id"), *req.Enabled); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sequential": *req.Enabled})
}

type trackersRequest struct {
	URLs []string `json:"urls"`
}

func (h *Handler) getTrackers(c *gin.Context) {
	trackers, err := h.manager.Trackers(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]TrackerResponse, len(trackers))
	for i, tr := range trackers {
		resp[i] = TrackerResponse{URL: tr.URL, Tier: tr.Tier}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) replaceTrackers(c *gin.Context) {
	h.updateTrackers(c, h.manager.ReplaceTrackers)
}

func (h *Handler) addTrackers(c *gin.Context) {
	h.updateTrackers(c, h.manager.AddTrackers)
}

func (h *Handler) updateTrackers(c *gin.Context, fn func(id string, urls []string) error) {
	var req trackersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if err := fn(c.Param("id"), urls); err != nil {
		writeError(c, err)
		return
	}
	h.getTrackers(c)
}

func (h *Handler) getMagnet(c *gin.Context) {
	uri, err := h.manager.Magnet(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"magnet": uri})
}

func (h *Handler) getPeers(c *gin.Context) {
	peers, err := h.manager.Peers(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]PeerResponse, len(peers))
	for i, p := range peers {
		resp[i] = PeerResponse{Addr: p.Addr, Client: p.Client}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getPieces(c *gin.Context) {
	pieces, err := h.manager.Pieces(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, piecesToResponse(pieces))
}

func (h *Handler) getIncomplete(c *gin.Context) {
	files, err := h.manager.IncompleteFiles(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}
