// Package server exposes the extraction pipeline over HTTP. Consumers
// (templating tools, review UIs) receive the aliased record map and resolve
// the keys they know.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dangbaokhoa/identity-card/internal/common"
	"github.com/dangbaokhoa/identity-card/internal/pipeline"
	"github.com/dangbaokhoa/identity-card/internal/qr"
	"github.com/dangbaokhoa/identity-card/internal/store"
)

// RecordStore is the slice of the persistence layer the read API needs.
type RecordStore interface {
	ListRecords(ctx context.Context) ([]store.RecordRow, error)
	GetRecord(ctx context.Context, jobID uuid.UUID) (store.RecordRow, error)
}

type Server struct {
	proc    *pipeline.Processor
	records RecordStore
	logger  *slog.Logger
}

// New builds the server. records may be nil, in which case the stored
// record routes are not mounted.
func New(proc *pipeline.Processor, records RecordStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{proc: proc, records: records, logger: logger}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/healthz", s.health)

	api := r.Group("/api/v1")
	{
		api.POST("/extract", s.extract)
		api.POST("/extract/qr", s.extractQR)
		if s.records != nil {
			api.GET("/records", s.listRecords)
			api.GET("/records/:id", s.getRecord)
		}
	}
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// extract runs the visual pipeline on an uploaded card photo.
// POST /api/v1/extract (multipart, field "image")
func (s *Server) extract(c *gin.Context) {
	path, cleanup, ok := s.saveUpload(c)
	if !ok {
		return
	}
	defer cleanup()

	rec, err := s.proc.ProcessImage(c.Request.Context(), path)
	if err != nil {
		s.logger.Error("server.extract.failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "extraction failed"})
		return
	}
	c.JSON(http.StatusOK, rec.Aliased())
}

// extractQR decodes the QR payload from an uploaded photo, or parses a raw
// payload string sent as JSON {"payload": "..."}.
// POST /api/v1/extract/qr
func (s *Server) extractQR(c *gin.Context) {
	// raw payload path: no image involved
	if c.ContentType() == "application/json" {
		var req struct {
			Payload string `json:"payload" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payload is required"})
			return
		}
		rec, err := qr.ParsePayload(req.Payload)
		if err != nil {
			s.respondQRError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec.Aliased())
		return
	}

	path, cleanup, ok := s.saveUpload(c)
	if !ok {
		return
	}
	defer cleanup()

	rec, err := s.proc.ProcessQR(c.Request.Context(), path)
	if err != nil {
		s.respondQRError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec.Aliased())
}

// listRecords returns every stored record with its job metadata.
// GET /api/v1/records
func (s *Server) listRecords(c *gin.Context) {
	rows, err := s.records.ListRecords(c.Request.Context())
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, recordJSON(row))
	}
	c.JSON(http.StatusOK, out)
}

// getRecord returns one stored record by job id.
// GET /api/v1/records/:id
func (s *Server) getRecord(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	row, err := s.records.GetRecord(c.Request.Context(), jobID)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordJSON(row))
}

func recordJSON(row store.RecordRow) gin.H {
	return gin.H{
		"job_id":      row.JobID.String(),
		"source_path": row.SourcePath,
		"mode":        row.Mode,
		"record":      row.Record.Aliased(),
	}
}

func (s *Server) respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, common.ErrDatabase):
		s.logger.Error("server.records.db_failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": common.ErrInternal.Error()})
	default:
		s.logger.Error("server.records.failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": common.ErrInternal.Error()})
	}
}

func (s *Server) respondQRError(c *gin.Context, err error) {
	var formatErr *qr.FormatError
	switch {
	case errors.As(err, &formatErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  formatErr.Error(),
			"fields": formatErr.Fields,
		})
	case errors.Is(err, qr.ErrNoQRCode):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": qr.ErrNoQRCode.Error()})
	default:
		s.logger.Error("server.qr.failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "QR extraction failed"})
	}
}

// saveUpload writes the multipart "image" file to a temp path. The bool is
// false when the response has already been written.
func (s *Server) saveUpload(c *gin.Context) (string, func(), bool) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return "", nil, false
	}

	dir, err := os.MkdirTemp("", "idcard-upload-*")
	if err != nil {
		s.logger.Error("server.upload.tempdir_failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return "", nil, false
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, path); err != nil {
		cleanup()
		s.logger.Error("server.upload.save_failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return "", nil, false
	}
	return path, cleanup, true
}
