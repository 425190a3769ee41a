package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"trajectory-analytics/backend/internal/cypher"
	"trajectory-analytics/backend/internal/graph"
	"trajectory-analytics/backend/internal/trajectory"
	"trajectory-analytics/backend/pkg/config"
	"trajectory-analytics/backend/pkg/logger"
)

// seed writes a synthetic trajectory: a Metadata node for the run, states
// with a few atoms each, and one run relation per timestep of a random walk
// over the states. It then computes the run's occurrence counts with the
// same query the API hands out.
func main() {
	run := flag.String("run", "nano_pt", "Trajectory name to create")
	states := flag.Int("states", 20, "Number of distinct states")
	atoms := flag.Int("atoms", 4, "Atoms per state")
	steps := flag.Int("steps", 200, "Timesteps in the walk")
	seed := flag.Int64("seed", 1, "Random seed for the walk")
	reset := flag.Bool("reset", false, "Delete all nodes and relationships first")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting database seeding...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer driver.Close(ctx)

	name := cypher.SanitizeName(*run)
	if !cypher.ValidIdentifier(name) {
		log.Fatal("Run name is not a usable relationship type", zap.String("run", *run))
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: cfg.Neo4jDatabase,
	})
	defer session.Close(ctx)

	if *reset {
		if err := deleteAllData(ctx, session); err != nil {
			log.Fatal("Failed to reset database", zap.Error(err))
		}
		log.Info("All nodes and relationships deleted")
	}

	log.Info("Creating constraints and indexes...")
	createIndexes(ctx, session, log)

	if err := createStates(ctx, session, name, *states, *atoms); err != nil {
		log.Fatal("Failed to create states", zap.Error(err))
	}
	log.Info("Created states", zap.Int("states", *states), zap.Int("atoms_per_state", *atoms))

	walk := randomWalk(rand.New(rand.NewSource(*seed)), *states, *steps)
	if err := createTransitions(ctx, session, name, walk); err != nil {
		log.Fatal("Failed to create transitions", zap.Error(err))
	}
	log.Info("Created transitions", zap.String("run", name), zap.Int("timesteps", len(walk)))

	qb, err := trajectory.NewQueryBuilder(trajectory.DefaultSchema([]string{name}))
	if err != nil {
		log.Fatal("Failed to create query builder", zap.Error(err))
	}
	occurrences, err := qb.Occurrences(name)
	if err != nil {
		log.Fatal("Failed to compose occurrences query", zap.Error(err))
	}
	if _, err := session.Run(ctx, occurrences.Text, nil); err != nil {
		log.Fatal("Failed to compute occurrences", zap.Error(err))
	}

	log.Info("Seed completed", zap.String("run", name))
}

type transition struct {
	From     int
	To       int
	Timestep int
}

// randomWalk visits states for steps timesteps, mostly staying close to
// the current state.
func randomWalk(rng *rand.Rand, states, steps int) []transition {
	if states < 1 {
		return nil
	}
	walk := make([]transition, 0, steps)
	current := 0
	for t := 0; t < steps; t++ {
		next := current + rng.Intn(3) - 1
		if next < 0 || next >= states {
			next = current
		}
		walk = append(walk, transition{From: current, To: next, Timestep: t})
		current = next
	}
	return walk
}

func deleteAllData(ctx context.Context, session neo4j.SessionWithContext) error {
	_, err := session.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
	return err
}

// createIndexes creates Neo4j constraints and indexes for the lookups the
// composed queries make
func createIndexes(ctx context.Context, session neo4j.SessionWithContext, log *zap.Logger) {
	statements := []string{
		"CREATE CONSTRAINT state_id_unique IF NOT EXISTS FOR (s:State) REQUIRE s.id IS UNIQUE",
		"CREATE CONSTRAINT metadata_run_unique IF NOT EXISTS FOR (m:Metadata) REQUIRE m.run IS UNIQUE",
		"CREATE INDEX atom_internal_id IF NOT EXISTS FOR (a:Atom) ON (a.internal_id)",
	}
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			// may already exist under another name
			log.Warn("Failed to create index", zap.String("statement", stmt), zap.Error(err))
		}
	}
}

func createStates(ctx context.Context, session neo4j.SessionWithContext, run string, states, atoms int) error {
	_, err := session.Run(ctx,
		"MERGE (m:Metadata {run: $run}) SET m.potentialFileName = $file, m.potentialFileRaw = $raw",
		map[string]any{
			"run":  run,
			"file": run + ".eam.alloy",
			"raw":  "# synthetic potential for " + run,
		})
	if err != nil {
		return err
	}

	ids := make([]int, states)
	for i := range ids {
		ids[i] = i
	}
	_, err = session.Run(ctx, `
		UNWIND $ids AS id
		MERGE (s:State {id: id})
		WITH s
		UNWIND range(0, $atoms - 1) AS i
		MERGE (a:Atom {state_id: s.id, internal_id: i})
		SET a.element = 'Cu', a.x = toFloat(i), a.y = toFloat(s.id), a.z = 0.0
		MERGE (a)-[:PART_OF]->(s)
	`, map[string]any{"ids": ids, "atoms": atoms})
	return err
}

func createTransitions(ctx context.Context, session neo4j.SessionWithContext, run string, walk []transition) error {
	rows := make([]map[string]any, len(walk))
	for i, tr := range walk {
		rows[i] = map[string]any{"from": tr.From, "to": tr.To, "timestep": tr.Timestep}
	}
	// relationship types cannot be parameters; run is sanitized by the caller
	query := `
		UNWIND $rows AS row
		MATCH (a:State {id: row.from}), (b:State {id: row.to})
		CREATE (a)-[:` + run + ` {timestep: row.timestep}]->(b)
	`
	_, err := session.Run(ctx, query, map[string]any{"rows": rows})
	return err
}
