package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "trajectory-analytics/backend/pkg/errors"
	"trajectory-analytics/backend/pkg/logger"
)

const (
	runNamesQuery          = "MATCH (m:Metadata) RETURN DISTINCT m.run AS run"
	relationshipTypesQuery = "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType"
)

// result is the part of a neo4j result the repository reads.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// runner is the part of a neo4j session the repository uses.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Repository reads the shape of a trajectory database from Neo4j.
type Repository struct {
	driver     neo4j.DriverWithContext
	database   string
	logger     *zap.Logger
	newSession func(ctx context.Context) runner // for testing
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithDatabase selects the Neo4j database sessions are opened against.
func WithDatabase(name string) RepositoryOption {
	return func(r *Repository) { r.database = name }
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext, opts ...RepositoryOption) *Repository {
	r := &Repository{
		driver: driver,
		logger: logger.Named("graph"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Connect opens a driver and verifies it can reach the server.
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	return driver, nil
}

// Close closes the Neo4j driver connection
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (r *Repository) session(ctx context.Context) runner {
	if r.newSession != nil {
		return r.newSession(ctx)
	}
	return &sessionAdapter{sess: r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: r.database,
	})}
}

// RunNames returns the trajectory names recorded on Metadata nodes.
func (r *Repository) RunNames(ctx context.Context) ([]string, error) {
	return r.strings(ctx, runNamesQuery, "run")
}

// RelationshipTypes returns every relationship type known to the database.
func (r *Repository) RelationshipTypes(ctx context.Context) ([]string, error) {
	return r.strings(ctx, relationshipTypesQuery, "relationshipType")
}

// strings runs query and collects the non-empty string values of key.
func (r *Repository) strings(ctx context.Context, query, key string) ([]string, error) {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, query, nil)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed(query, err)
	}

	var values []string
	for res.Next(ctx) {
		val, _ := res.Record().Get(key)
		if v, ok := val.(string); ok && v != "" {
			values = append(values, v)
		}
	}
	if err := res.Err(); err != nil {
		return nil, apperrors.NewGraphQueryFailed(query, err)
	}

	r.logger.Debug("Read values from graph",
		zap.String("key", key),
		zap.Int("count", len(values)),
	)
	return values, nil
}
