package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/batch"
	"github.com/i-machine-things/JobDocs-sub000/internal/config"
	"github.com/i-machine-things/JobDocs-sub000/internal/excel"
	"github.com/i-machine-things/JobDocs-sub000/internal/resolver"
	"github.com/i-machine-things/JobDocs-sub000/internal/store"
	"github.com/i-machine-things/JobDocs-sub000/internal/transform"
)

// Handler implements the API routes. Stores are opened per request and
// flushed when the request's run ends; the handler itself is stateless.
type Handler struct {
	cfg *config.AppConfig
	log *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(cfg *config.AppConfig, log *zap.Logger) *Handler {
	return &Handler{cfg: cfg, log: log}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)
	router.GET("/customers", h.ListCustomers)

	router.GET("/config", h.GetConfig)
	router.PATCH("/config", h.UpdateConfig)

	// Pre-run previews
	router.POST("/preview", h.PreviewProjection)
	router.POST("/matches", h.PreviewMatches)

	// Manual alias correction from the match review step
	router.POST("/alias", h.RecordAlias)

	// Run the export (SSE progress stream)
	router.POST("/run", h.Run)
}

// GetStatus reports basic liveness and configuration facts.
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	customers, _ := h.customerFolders()
	c.JSON(http.StatusOK, gin.H{
		"app":          "jobdocs-reportfix",
		"templatePath": h.cfg.Report.TemplatePath,
		"customerDir":  h.cfg.Report.CustomerFilesDir,
		"customers":    len(customers),
	})
}

// ListCustomers returns the canonical customer folder list.
// GET /api/customers
func (h *Handler) ListCustomers(c *gin.Context) {
	customers, err := h.customerFolders()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

// GetConfig returns the report configuration.
// GET /api/config
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg.Report)
}

// UpdateConfig patches the report configuration and persists it.
// PATCH /api/config
func (h *Handler) UpdateConfig(c *gin.Context) {
	var req struct {
		TemplatePath     *string `json:"templatePath"`
		CustomerFilesDir *string `json:"customerFilesDir"`
		DatedOutputs     *bool   `json:"datedOutputs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.TemplatePath != nil {
		h.cfg.Report.TemplatePath = *req.TemplatePath
	}
	if req.CustomerFilesDir != nil {
		h.cfg.Report.CustomerFilesDir = *req.CustomerFilesDir
	}
	if req.DatedOutputs != nil {
		h.cfg.Report.DatedOutputs = *req.DatedOutputs
	}
	if err := config.SaveConfig(h.cfg); err != nil {
		h.log.Warn("could not persist config", zap.Error(err))
	}
	c.JSON(http.StatusOK, h.cfg.Report)
}

// PreviewProjection shows how the source columns map onto the template.
// POST /api/preview
func (h *Handler) PreviewProjection(c *gin.Context) {
	var req struct {
		TemplatePath string `json:"templatePath"`
		SourcePath   string `json:"sourcePath"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.TemplatePath == "" {
		req.TemplatePath = h.cfg.Report.TemplatePath
	}

	template, err := excel.ReadTemplateColumns(req.TemplatePath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read template: %v", err)})
		return
	}
	source, err := excel.ReadSource(req.SourcePath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read source: %v", err)})
		return
	}

	plan := transform.Plan(template, source)
	c.JSON(http.StatusOK, gin.H{
		"projection": plan,
		"rows":       source.RowCount(),
	})
}

// PreviewMatches resolves every distinct customer name in the source so the
// user can review matches and correct the unmatched ones before running.
// POST /api/matches
func (h *Handler) PreviewMatches(c *gin.Context) {
	var req struct {
		SourcePath string `json:"sourcePath"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	source, err := excel.ReadSource(req.SourcePath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read source: %v", err)})
		return
	}
	res, _, err := h.buildResolver()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	customerCol, ok := batch.DetectCustomerColumn(source)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no customer column found in source"})
		return
	}

	type matchRow struct {
		Name       string              `json:"name"`
		Rows       int                 `json:"rows"`
		Resolution resolver.Resolution `json:"resolution"`
	}
	counts := make(map[string]int)
	for r := 0; r < source.RowCount(); r++ {
		if name := source.Cell(r, customerCol).String(); name != "" {
			counts[name]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	matches := make([]matchRow, 0, len(names))
	unmatched := 0
	for _, name := range names {
		r := res.Resolve(name)
		if r.Folder == "" {
			unmatched++
		}
		matches = append(matches, matchRow{Name: name, Rows: counts[name], Resolution: r})
	}

	c.JSON(http.StatusOK, gin.H{
		"column":    customerCol,
		"matches":   matches,
		"unmatched": unmatched,
	})
}

// RecordAlias persists a manual customer-name correction.
// POST /api/alias
func (h *Handler) RecordAlias(c *gin.Context) {
	var req struct {
		Name   string `json:"name"`
		Folder string `json:"folder"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.Folder == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and folder are required"})
		return
	}

	customers, err := h.customerFolders()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	found := false
	for _, f := range customers {
		if f == req.Folder {
			found = true
			break
		}
	}
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown customer folder: %s", req.Folder)})
		return
	}

	aliases := store.OpenAliases(config.GetDataPath(h.cfg, config.AliasFile), h.log)
	aliases.Record(req.Name, req.Folder)
	if err := aliases.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"aliases": aliases.Len()})
}

// Run executes an export and streams progress as SSE.
// POST /api/run
func (h *Handler) Run(c *gin.Context) {
	var req struct {
		TemplatePath  string `json:"templatePath"`
		SourcePath    string `json:"sourcePath"`
		Customer      string `json:"customer"`
		AutoDetect    bool   `json:"autoDetect"`
		DropUnmatched bool   `json:"dropUnmatched"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.TemplatePath == "" {
		req.TemplatePath = h.cfg.Report.TemplatePath
	}
	if !req.AutoDetect && req.Customer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "select a customer or enable auto-detect"})
		return
	}

	coord, err := h.newCoordinator()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	// The request context carries the client disconnect, which is the only
	// way a running batch can be aborted from the UI.
	events := coord.Stream(c.Request.Context(), batch.Options{
		TemplatePath: req.TemplatePath,
		SourcePath:   req.SourcePath,
		Customer:     req.Customer,
		AutoDetect:   req.AutoDetect,
		ConfirmDrop: func(sample []string, remainder int) bool {
			// The UI reviews unmatched names through /api/matches first and
			// re-posts with dropUnmatched set.
			return req.DropUnmatched
		},
	})

	for event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
		flusher.Flush()
	}
}

// newCoordinator builds the per-run engine: fresh stores, a resolver over
// the current folder list, and the coordinator wiring them together.
func (h *Handler) newCoordinator() (*batch.Coordinator, error) {
	res, aliases, err := h.buildResolver()
	if err != nil {
		return nil, err
	}
	history := store.OpenHistory(config.GetDataPath(h.cfg, config.HistoryFile), h.log)
	highlights := store.OpenHighlights(config.GetDataPath(h.cfg, config.HighlightsFile), h.log)

	return batch.New(res, history, highlights, aliases,
		h.cfg.Report.CustomerFilesDir, h.cfg.Report.DatedOutputs, nil, h.log), nil
}

func (h *Handler) buildResolver() (*resolver.Resolver, *store.AliasStore, error) {
	customers, err := h.customerFolders()
	if err != nil {
		return nil, nil, err
	}
	aliases := store.OpenAliases(config.GetDataPath(h.cfg, config.AliasFile), h.log)
	return resolver.New(customers, aliases, h.cfg.Report.MatchThreshold, h.log), aliases, nil
}

// customerFolders enumerates the canonical customer folder names.
func (h *Handler) customerFolders() ([]string, error) {
	dir := h.cfg.Report.CustomerFilesDir
	if dir == "" {
		return nil, fmt.Errorf("customer files directory not configured")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read customer files directory: %w", err)
	}
	var folders []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			folders = append(folders, e.Name())
		}
	}
	sort.Strings(folders)
	return folders, nil
}
