package trajectory

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trajectory-analytics/backend/internal/cypher"
)

// SchemaSource reports what a trajectory database contains.
type SchemaSource interface {
	RunNames(ctx context.Context) ([]string, error)
	RelationshipTypes(ctx context.Context) ([]string, error)
}

// Discoverer infers a Schema from a live database.
type Discoverer struct {
	source SchemaSource
	log    *zap.Logger
}

// NewDiscoverer creates a discoverer reading from source.
func NewDiscoverer(source SchemaSource, log *zap.Logger) *Discoverer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Discoverer{source: source, log: log}
}

// Discover probes the database for run names and relationship types and
// returns the default schema over their union. PART_OF is never a run, and
// names that cannot be written into a query unquoted are skipped.
func (d *Discoverer) Discover(ctx context.Context) (Schema, error) {
	var runs, types []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		runs, err = d.source.RunNames(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		types, err = d.source.RelationshipTypes(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		d.log.Error("Schema discovery failed", zap.Error(err))
		return Schema{}, err
	}

	names, skipped := mergeRuns(runs, types)
	if len(skipped) > 0 {
		d.log.Warn("Skipping runs that are not valid identifiers", zap.Strings("runs", skipped))
	}
	d.log.Info("Discovered trajectory schema",
		zap.Strings("runs", names),
		zap.Int("metadata_runs", len(runs)),
		zap.Int("relationship_types", len(types)),
	)
	return DefaultSchema(names), nil
}

func mergeRuns(lists ...[]string) (runs, skipped []string) {
	seen := map[string]struct{}{PartOfLabel: {}, "": {}}
	for _, list := range lists {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			if !cypher.ValidIdentifier(name) {
				skipped = append(skipped, name)
				continue
			}
			runs = append(runs, name)
		}
	}
	sort.Strings(runs)
	return runs, skipped
}
