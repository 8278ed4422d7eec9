// Package api exposes ingest and annotation queries over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinvar-query/internal/domain"
	"github.com/clinvar-query/internal/intake"
	"github.com/clinvar-query/internal/middleware"
	"github.com/clinvar-query/internal/service"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Ingester runs the ingest pipeline for one file
type Ingester interface {
	Ingest(ctx context.Context, req service.IngestRequest) (*service.IngestReport, error)
}

// OutputReader lists and reads the saved processed and misaligned files
type OutputReader interface {
	ListOutputs() ([]intake.OutputFile, error)
	ReadOutput(kind intake.OutputKind, name string) (string, error)
}

// Server represents the HTTP server
type Server struct {
	config   domain.ServerConfig
	ingester Ingester
	outputs  OutputReader
	store    domain.AnnotationStore
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(config domain.ServerConfig, ingester Ingester, outputs OutputReader, store domain.AnnotationStore, logger *logrus.Logger) *Server {
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestTimeout(config.RequestTimeout))

	s := &Server{
		config:   config,
		ingester: ingester,
		outputs:  outputs,
		store:    store,
		logger:   logger,
		router:   router,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/ingest", s.handleIngest)
		v1.GET("/patients/:patient_id/variants", s.handlePatientVariants)
		v1.GET("/annotations/:variant_id", s.handleGetAnnotation)
		v1.GET("/search", s.handleSearch)
		v1.GET("/results/latest", s.handleLatest)
		v1.GET("/files", s.handleListFiles)
		v1.GET("/files/:kind/:name", s.handleReadFile)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}

func (s *Server) handleIngest(c *gin.Context) {
	var req service.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.CodeInvalidInput, err.Error())
		return
	}

	report, err := s.ingester.Ingest(c.Request.Context(), req)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr), errors.Is(err, domain.ErrUnsupportedFormat):
			s.writeError(c, http.StatusBadRequest, domain.CodeInvalidInput, err.Error())
		case errors.Is(err, fs.ErrNotExist):
			s.writeError(c, http.StatusNotFound, domain.CodeNotFound, err.Error())
		default:
			s.writeError(c, http.StatusInternalServerError, domain.CodeIngestFailed, err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handlePatientVariants(c *gin.Context) {
	patientID := c.Param("patient_id")
	variants, err := s.store.ListPatientVariants(c.Request.Context(), patientID)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"patient_id": patientID,
		"count":      len(variants),
		"variants":   variants,
	})
}

func (s *Server) handleGetAnnotation(c *gin.Context) {
	variant, err := domain.ParseCanonicalVariant(c.Param("variant_id"))
	if err != nil {
		s.writeError(c, http.StatusBadRequest, domain.CodeInvalidInput, err.Error())
		return
	}

	annotation, err := s.store.GetAnnotation(c.Request.Context(), variant.String())
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotation)
}

func (s *Server) handleSearch(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(c, http.StatusBadRequest, domain.CodeInvalidInput, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	results, err := s.store.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query":   c.Query("q"),
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleLatest(c *gin.Context) {
	latest, err := s.store.LatestAnnotated(c.Request.Context())
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, latest)
}

func (s *Server) handleListFiles(c *gin.Context) {
	files, err := s.outputs.ListOutputs()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list output files")
		s.writeError(c, http.StatusInternalServerError, domain.CodeFileError, "failed to list output files")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(files),
		"files": files,
	})
}

func (s *Server) handleReadFile(c *gin.Context) {
	kind, err := intake.ParseOutputKind(c.Param("kind"))
	if err != nil {
		s.writeError(c, http.StatusNotFound, domain.CodeNotFound, err.Error())
		return
	}

	content, err := s.outputs.ReadOutput(kind, c.Param("name"))
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			s.writeError(c, http.StatusBadRequest, domain.CodeInvalidInput, err.Error())
		case errors.Is(err, fs.ErrNotExist):
			s.writeError(c, http.StatusNotFound, domain.CodeNotFound, "no such "+string(kind)+" file")
		default:
			s.logger.WithError(err).Error("Failed to read output file")
			s.writeError(c, http.StatusInternalServerError, domain.CodeFileError, "failed to read output file")
		}
		return
	}
	c.String(http.StatusOK, content)
}

func (s *Server) storeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(c, http.StatusNotFound, domain.CodeNotFound, err.Error())
	case errors.As(err, &verr):
		s.writeError(c, http.StatusBadRequest, domain.CodeInvalidInput, err.Error())
	default:
		s.logger.WithFields(logrus.Fields{
			"request_id": c.GetString(middleware.RequestIDKey),
			"error":      err.Error(),
		}).Error("Store query failed")
		s.writeError(c, http.StatusInternalServerError, domain.CodeDatabaseError, "database error")
	}
}

func (s *Server) writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, domain.APIError{
		Code:      code,
		Message:   message,
		RequestID: c.GetString(middleware.RequestIDKey),
	})
}
