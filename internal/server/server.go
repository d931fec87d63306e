// Package server exposes discovery, background builds and stored areas
// over a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	cerrors "cloudeng.io/errors"
	ginlogger "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/ramkansal/routeguessr/internal/crawler"
	"github.com/ramkansal/routeguessr/internal/extractor"
	"github.com/ramkansal/routeguessr/internal/fetcher"
	"github.com/ramkansal/routeguessr/internal/jobs"
	"github.com/ramkansal/routeguessr/internal/models"
	"github.com/ramkansal/routeguessr/internal/store"
	"github.com/ramkansal/routeguessr/pkg/plugin"
	"github.com/rs/zerolog"
)

// Discoverer finds one random route under an area.
type Discoverer interface {
	Discover(ctx context.Context, areaLink string) (*crawler.Discovery, error)
}

// Builder crawls and stores everything under an area.
type Builder interface {
	Build(ctx context.Context, rootLink string) (*plugin.BuildSummary, error)
}

// Server wires the API handlers to their collaborators.
type Server struct {
	discover Discoverer
	builder  Builder
	jobs     *jobs.Registry
	store    store.Store
	log      zerolog.Logger
	engine   *gin.Engine
}

// New builds the gin engine and registers the routes.
func New(d Discoverer, b Builder, reg *jobs.Registry, st store.Store, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		discover: d,
		builder:  b,
		jobs:     reg,
		store:    st,
		log:      log.With().Str("component", "server").Logger(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ginlogger.SetLogger(
		ginlogger.WithLogger(func(_ *gin.Context, _ zerolog.Logger) zerolog.Logger { return s.log }),
		ginlogger.WithSkipPath([]string{"/api/health"}),
	))

	api := r.Group("/api")
	api.GET("/health", s.health)
	api.GET("/discover", s.discoverRoute)
	api.POST("/builds", s.startBuild)
	api.GET("/builds/:id", s.buildStatus)
	api.GET("/areas", s.listAreas)
	api.GET("/stats", s.stats)

	s.engine = r
	return s
}

// Handler returns the http.Handler serving the API.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type discoveryResponse struct {
	ImageURL   string          `json:"image_url"`
	RouteLink  string          `json:"route_link"`
	RouteName  string          `json:"route_name"`
	AreaName   string          `json:"area_name"`
	AreaCoord  json.RawMessage `json:"area_coord"`
	RouteCoord json.RawMessage `json:"route_coord"`
}

func (s *Server) discoverRoute(c *gin.Context) {
	area := c.Query("area")
	if area == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "area is required"})
		return
	}

	d, err := s.discover.Discover(c.Request.Context(), area)
	if err != nil {
		status := discoverStatus(err)
		if status >= http.StatusInternalServerError {
			s.log.Error().Err(err).Str("area", area).Msg("discovery failed")
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	areaCoord, err := d.AreaCoord.GeoJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	routeCoord, err := d.RouteCoord.GeoJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, discoveryResponse{
		ImageURL:   d.ImageURL,
		RouteLink:  d.RouteLink,
		RouteName:  d.RouteName,
		AreaName:   d.AreaName,
		AreaCoord:  areaCoord,
		RouteCoord: routeCoord,
	})
}

func discoverStatus(err error) int {
	switch {
	case errors.Is(err, crawler.ErrNoRouteDiscovered), errors.Is(err, crawler.ErrNoRoutesFound):
		return http.StatusNotFound
	case errors.Is(err, fetcher.ErrNetwork), errors.Is(err, extractor.ErrFieldNotFound):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type buildRequest struct {
	Area string `json:"area" binding:"required"`
}

// buildResult is the job result of a build: the summary plus the
// per-branch failures, which the summary itself does not serialise.
type buildResult struct {
	*plugin.BuildSummary
	Errors []string `json:"errors,omitempty"`
}

func (s *Server) startBuild(c *gin.Context) {
	var req buildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := s.jobs.Start("build", func(ctx context.Context) (any, error) {
		sum, err := s.builder.Build(ctx, req.Area)
		if err != nil {
			return nil, err
		}
		return newBuildResult(sum), nil
	})
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func newBuildResult(sum *plugin.BuildSummary) buildResult {
	res := buildResult{BuildSummary: sum}
	var m *cerrors.M
	if errors.As(sum.Err, &m) {
		for _, err := range m.Unwrap() {
			res.Errors = append(res.Errors, err.Error())
		}
	} else if sum.Err != nil {
		res.Errors = []string{sum.Err.Error()}
	}
	return res
}

func (s *Server) buildStatus(c *gin.Context) {
	st, ok := s.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown build"})
		return
	}
	c.JSON(http.StatusOK, st)
}

type areaResponse struct {
	*models.Area
	Location json.RawMessage `json:"location"`
}

func (s *Server) listAreas(c *gin.Context) {
	areas, err := s.store.ListAreas(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]areaResponse, 0, len(areas))
	for i := range areas {
		loc, err := areas[i].Coordinate().GeoJSON()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out = append(out, areaResponse{Area: &areas[i], Location: loc})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) stats(c *gin.Context) {
	counts, err := s.store.Counts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, counts)
}
