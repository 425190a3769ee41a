package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trajectory-analytics/backend/internal/cypher"
	"trajectory-analytics/backend/internal/trajectory"
	apperrors "trajectory-analytics/backend/pkg/errors"
)

// server composes queries over a fixed schema. Builders are not safe for
// concurrent use, so every request gets its own.
type server struct {
	schema trajectory.Schema
	log    *zap.Logger
}

func newServer(schema trajectory.Schema, log *zap.Logger) (*server, error) {
	s := &server{schema: schema, log: log}
	// fail at startup rather than on every request
	if _, err := s.builder(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *server) builder() (*trajectory.QueryBuilder, error) {
	return trajectory.NewQueryBuilder(s.schema, cypher.WithLogger(s.log.Named("cypher")))
}

type statesRequest struct {
	IDs          []int    `json:"ids" binding:"required"`
	IncludeAtoms bool     `json:"include_atoms"`
	Attributes   []string `json:"attributes"`
	OrderBy      string   `json:"order_by"`
}

type pathRequest struct {
	Start        *int   `json:"start" binding:"required"`
	End          *int   `json:"end" binding:"required"`
	Relation     string `json:"relation" binding:"required"`
	MatchOn      string `json:"match_on"`
	IncludeAtoms *bool  `json:"include_atoms"`
	Order        string `json:"order"`
	Optional     bool   `json:"optional"`
}

type updateRequest struct {
	Label      string         `json:"label" binding:"required"`
	MatchOn    string         `json:"match_on" binding:"required"`
	Attributes map[string]any `json:"attributes" binding:"required"`
}

func newRouter(s *server) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(s.log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/schema", func(c *gin.Context) {
			c.JSON(http.StatusOK, s.schema)
		})

		queries := api.Group("/queries")
		queries.POST("/states", s.handleStates)
		queries.POST("/path", s.handlePath)
		queries.POST("/update", s.handleUpdate)
		queries.GET("/transitions/:relation", s.handleTransitions)
		queries.GET("/potential/:run", s.handlePotential)
		queries.GET("/occurrences/:run", s.handleOccurrences)
	}

	return router
}

func (s *server) handleStates(c *gin.Context) {
	var req statesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.compose(c, func(q *trajectory.QueryBuilder) (cypher.Query, error) {
		return q.States(req.IDs, trajectory.StatesOptions{
			IncludeAtoms: req.IncludeAtoms,
			Attributes:   req.Attributes,
			OrderBy:      req.OrderBy,
		})
	})
}

func (s *server) handlePath(c *gin.Context) {
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts := trajectory.DefaultPathOptions()
	if req.MatchOn != "" {
		opts.MatchOn = req.MatchOn
	}
	if req.IncludeAtoms != nil {
		opts.IncludeAtoms = *req.IncludeAtoms
	}
	if req.Order != "" {
		opts.Order = cypher.Order(req.Order)
	}
	opts.Optional = req.Optional

	s.compose(c, func(q *trajectory.QueryBuilder) (cypher.Query, error) {
		return q.Path(*req.Start, *req.End, req.Relation, opts)
	})
}

func (s *server) handleUpdate(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.compose(c, func(q *trajectory.QueryBuilder) (cypher.Query, error) {
		return q.UpdateEntity(req.Attributes, req.Label, req.MatchOn)
	})
}

func (s *server) handleTransitions(c *gin.Context) {
	relation := c.Param("relation")
	occurrences := c.DefaultQuery("occurrences", cypher.SanitizeName(relation)+"_occurrences")
	s.compose(c, func(q *trajectory.QueryBuilder) (cypher.Query, error) {
		return q.TransitionMatrix(relation, occurrences)
	})
}

func (s *server) handlePotential(c *gin.Context) {
	run := c.Param("run")
	s.compose(c, func(q *trajectory.QueryBuilder) (cypher.Query, error) {
		return q.PotentialFile(run)
	})
}

func (s *server) handleOccurrences(c *gin.Context) {
	run := c.Param("run")
	s.compose(c, func(q *trajectory.QueryBuilder) (cypher.Query, error) {
		return q.Occurrences(run)
	})
}

// compose runs fn on a fresh builder and writes the query or the error.
func (s *server) compose(c *gin.Context, fn func(*trajectory.QueryBuilder) (cypher.Query, error)) {
	q, err := s.builder()
	if err != nil {
		s.log.Error("Failed to create query builder", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create query builder"})
		return
	}

	query, err := fn(q)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, query)
}

func statusFor(err error) int {
	var notFound *apperrors.ErrSchemaNotFound
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case apperrors.IsErrorType(err, apperrors.ErrorTypeSchema),
		apperrors.IsErrorType(err, apperrors.ErrorTypeBuilder):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
