package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"snippetd/internal/models"
	"snippetd/internal/pool"
	"snippetd/internal/registry"
	"snippetd/internal/schedule"
	"snippetd/internal/store"
)

// Server exposes the worker pool over a JSON API. It only ever hands out
// read-only job snapshots.
type Server struct {
	pool    *pool.WorkerPool
	sched   *schedule.Scheduler
	archive store.JobArchive // optional
	log     *logrus.Entry
}

func NewServer(p *pool.WorkerPool, sched *schedule.Scheduler, archive store.JobArchive, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.WithField("component", "api")
	}
	return &Server{
		pool:    p,
		sched:   sched,
		archive: archive,
		log:     log,
	}
}

func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jobs := r.Group("/api/jobs")
	{
		jobs.POST("", s.createJob)
		jobs.GET("", s.listJobs)
		jobs.GET("/archive", s.listArchived)
		jobs.GET("/:id", s.getJob)
		jobs.POST("/:id/cancel", s.cancelJob)
	}
	return r
}

type createJobRequest struct {
	Description string `json:"description"`
	Source      string `json:"source" binding:"required"`
	Schedule    int    `json:"schedule"`
}

func (s *Server) createJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	interval := models.ScheduleInterval(req.Schedule)
	if !interval.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "schedule must be one of 0, 1, 2, 6, 12"})
		return
	}

	id, err := s.pool.Submit(c.Request.Context(), pool.SubmitRequest{
		Description: req.Description,
		Source:      req.Source,
		Schedule:    interval,
	})
	if err != nil {
		if errors.Is(err, pool.ErrPoolClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service is shutting down"})
			return
		}
		s.log.WithError(err).Error("submit failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not submit job"})
		return
	}

	if interval != models.ScheduleNone && s.sched != nil {
		if err := s.sched.Add(id, req.Description, req.Source, interval); err != nil {
			s.log.WithField("job_id", id).WithError(err).Warn("could not register schedule")
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (s *Server) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.pool.List()})
}

func (s *Server) getJob(c *gin.Context) {
	view, err := s.pool.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) cancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := s.pool.Cancel(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		// Running or already finished jobs cannot be cancelled.
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if s.sched != nil {
		s.sched.Remove(id)
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "cancelled"})
}

func (s *Server) listArchived(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "no archive store configured"})
		return
	}
	views, err := s.archive.ListRecent(c.Request.Context(), 50)
	if err != nil {
		s.log.WithError(err).Error("archive list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list archived jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": views})
}
