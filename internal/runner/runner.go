package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"smartcollections/internal/catalog"
	"smartcollections/internal/criteria"
	"smartcollections/internal/dedupe"
	"smartcollections/internal/expr"
	"smartcollections/internal/franchise"
	"smartcollections/internal/metrics"
	"smartcollections/internal/reconcile"
	"smartcollections/internal/textnorm"
)

var ErrRunInProgress = errors.New("run already in progress")

type Status string

const (
	StatusReconciled  Status = "reconciled"
	StatusMismatch    Status = "mismatch"
	StatusSkipped     Status = "skipped"
	StatusParseFailed Status = "parse_failed"
	StatusFailed      Status = "failed"
)

type Options struct {
	Definitions []Definition
	// Discovery enables franchise collections when set.
	Discovery *franchise.Options
	// UserData backs play-state criteria. Optional.
	UserData         catalog.UserData
	EpisodeCacheSize int
	Clock            func() time.Time
}

// CollectionReport is the outcome of one definition within a run.
type CollectionReport struct {
	Name         string                `json:"name"`
	Source       Source                `json:"source"`
	Status       Status                `json:"status"`
	CollectionID string                `json:"collection_id,omitempty"`
	Candidates   int                   `json:"candidates"`
	Duplicates   int                   `json:"duplicates"`
	Added        int                   `json:"added"`
	Removed      int                   `json:"removed"`
	Reordered    int                   `json:"reordered"`
	FinalSize    int                   `json:"final_size"`
	Validation   *reconcile.Validation `json:"validation,omitempty"`
	ParseErrors  []*expr.ParseError    `json:"parse_errors,omitempty"`
	Error        string                `json:"error,omitempty"`
	Degraded     bool                  `json:"degraded,omitempty"`
}

type RunReport struct {
	ID          string             `json:"id"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	Cancelled   bool               `json:"cancelled"`
	Collections []CollectionReport `json:"collections"`
}

// Failed counts definitions that ended in parse_failed or failed.
func (r *RunReport) Failed() int {
	n := 0
	for _, c := range r.Collections {
		if c.Status == StatusFailed || c.Status == StatusParseFailed {
			n++
		}
	}
	return n
}

// Runner processes all definitions one at a time. Only one run may be active.
type Runner struct {
	catalog catalog.Catalog
	store   catalog.CollectionStore
	engine  *reconcile.Engine
	opts    Options
	base    zerolog.Logger
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
	last    *RunReport
}

func New(cat catalog.Catalog, store catalog.CollectionStore, logger zerolog.Logger, opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Runner{
		catalog: cat,
		store:   store,
		engine:  reconcile.NewEngine(store, logger),
		opts:    opts,
		base:    logger,
		logger:  logger.With().Str("component", "runner").Logger(),
	}
}

func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// LastReport returns the report of the most recent finished run, or nil.
func (r *Runner) LastReport() *RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Run processes every definition to completion before the next one starts.
// Cancellation is checked between definitions; collections already written
// stay written.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrRunInProgress
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	timer := prometheus.NewTimer(metrics.RunDuration)
	defer timer.ObserveDuration()

	rep := &RunReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := r.logger.With().Str("run", rep.ID).Logger()
	log.Info().Int("definitions", len(r.opts.Definitions)).Bool("discovery", r.opts.Discovery != nil).Msg("run started")

	defs := r.opts.Definitions
	if r.opts.Discovery != nil && ctx.Err() == nil {
		discovered, err := r.discover(ctx)
		if err != nil {
			log.Error().Err(err).Msg("franchise discovery failed")
			rep.Collections = append(rep.Collections, CollectionReport{
				Name:   "franchise discovery",
				Source: SourceDiscovered,
				Status: StatusFailed,
				Error:  err.Error(),
			})
			metrics.CollectionsTotal.WithLabelValues(string(SourceDiscovered), string(StatusFailed)).Inc()
		}
		defs = mergeDefinitions(defs, discovered)
	}

	for i := range defs {
		if ctx.Err() != nil {
			rep.Cancelled = true
			log.Warn().Int("remaining", len(defs)-i).Msg("run cancelled")
			break
		}

		cr := r.runDefinition(ctx, log, &defs[i])
		rep.Collections = append(rep.Collections, cr)
		record(&cr)
	}

	rep.FinishedAt = time.Now().UTC()
	outcome := "completed"
	if rep.Cancelled {
		outcome = "cancelled"
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()

	log.Info().
		Int("collections", len(rep.Collections)).
		Int("failed", rep.Failed()).
		Bool("cancelled", rep.Cancelled).
		Dur("duration", rep.FinishedAt.Sub(rep.StartedAt)).
		Msg("run finished")

	r.mu.Lock()
	r.last = rep
	r.mu.Unlock()

	return rep, nil
}

func (r *Runner) runDefinition(ctx context.Context, log zerolog.Logger, d *Definition) CollectionReport {
	cr := CollectionReport{Name: d.Name, Source: d.Source}
	log = log.With().Str("collection", d.Name).Str("source", string(d.Source)).Logger()

	target, err := r.target(ctx, d, &cr)
	if err != nil {
		cr.Status = StatusFailed
		cr.Error = err.Error()
		log.Error().Err(err).Msg("failed to compute target")
		return cr
	}
	if cr.Status == StatusParseFailed {
		log.Warn().Int("errors", len(cr.ParseErrors)).Str("expression", d.Expression).Msg("expression rejected")
		return cr
	}

	cr.Candidates = len(target)
	target = dedupe.Dedupe(target)
	cr.Duplicates = cr.Candidates - len(target)

	coll, err := r.store.FindManagedCollection(ctx, d.Name)
	if err != nil {
		cr.Status = StatusFailed
		cr.Error = fmt.Sprintf("find collection: %v", err)
		log.Error().Err(err).Msg("failed to look up collection")
		return cr
	}
	if coll == nil {
		if len(target) == 0 {
			cr.Status = StatusSkipped
			log.Debug().Msg("empty target, collection not created")
			return cr
		}
		coll, err = r.store.CreateCollection(ctx, d.Name)
		if err != nil {
			cr.Status = StatusFailed
			cr.Error = fmt.Sprintf("create collection: %v", err)
			log.Error().Err(err).Msg("failed to create collection")
			return cr
		}
		log.Info().Str("id", coll.ID).Msg("created collection")
	}
	cr.CollectionID = coll.ID

	rr, err := r.engine.Reconcile(ctx, coll.ID, target)
	if rr != nil {
		cr.Added = rr.Added
		cr.Removed = rr.Removed
		cr.Reordered = rr.Reordered
	}
	if err != nil {
		cr.Status = StatusFailed
		cr.Error = err.Error()
		var ce *reconcile.CollaboratorError
		if errors.As(err, &ce) {
			log.Error().Str("op", ce.Op).Err(ce.Err).Msg("reconciliation aborted")
		}
		return cr
	}

	cr.FinalSize = rr.FinalSize
	v := rr.Validation
	cr.Validation = &v
	cr.Status = StatusReconciled
	if !v.OK() {
		cr.Status = StatusMismatch
	}

	log.Info().
		Int("candidates", cr.Candidates).
		Int("duplicates", cr.Duplicates).
		Int("added", cr.Added).
		Int("removed", cr.Removed).
		Int("reordered", cr.Reordered).
		Int("final_size", cr.FinalSize).
		Bool("degraded", cr.Degraded).
		Msg("collection reconciled")

	return cr
}

// target computes the desired members of d. Parse failures are reported
// through cr and return no error.
func (r *Runner) target(ctx context.Context, d *Definition, cr *CollectionReport) ([]catalog.Entity, error) {
	switch d.Source {
	case SourceDiscovered:
		return d.members, nil

	case SourceMatch:
		var out []catalog.Entity
		for _, f := range matchFilters(d.Match, d.kinds()) {
			es, err := r.catalog.QueryEntities(ctx, f)
			if err != nil {
				return nil, fmt.Errorf("query entities: %w", err)
			}
			out = append(out, es...)
		}
		return out, nil

	case SourceExpression:
		node, errs := expr.Parse(d.Expression)
		if len(errs) > 0 {
			cr.Status = StatusParseFailed
			cr.ParseErrors = errs
			return nil, nil
		}
		return r.evaluate(ctx, d, node, cr)
	}
	return nil, fmt.Errorf("unknown definition source %q", d.Source)
}

func (r *Runner) evaluate(ctx context.Context, d *Definition, node expr.Node, cr *CollectionReport) ([]catalog.Entity, error) {
	candidates, err := r.catalog.QueryEntities(ctx, catalog.Filter{Kinds: d.kinds(), ExcludeVirtual: true})
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}

	opts := []criteria.Option{
		criteria.WithClock(r.opts.Clock),
	}
	if r.opts.UserData != nil {
		opts = append(opts, criteria.WithUserData(r.opts.UserData))
	}
	if r.opts.EpisodeCacheSize > 0 {
		opts = append(opts, criteria.WithEpisodeCacheSize(r.opts.EpisodeCacheSize))
	}
	if expr.References(node, criteria.Actor, criteria.Director) {
		people := criteria.NewPersonCache(r.catalog)
		defer people.Close()
		opts = append(opts, criteria.WithPersonCache(people))
	}

	m, err := criteria.NewMatcher(r.catalog, r.base, opts...)
	if err != nil {
		return nil, err
	}
	defer m.Release()

	var out []catalog.Entity
	for i := range candidates {
		attrs := m.Attributes(ctx, &candidates[i])
		if expr.Evaluate(node, func(c criteria.Criterion) bool {
			return m.MatchesAttributes(ctx, attrs, c, d.CaseSensitive)
		}) {
			out = append(out, candidates[i])
		}
		// the target is incomplete once a lookup failed
		if n := m.LookupFailures(); n > 0 {
			return nil, fmt.Errorf("catalog lookups failed: %d", n)
		}
	}
	cr.Degraded = m.Degraded()
	return out, nil
}

func (r *Runner) discover(ctx context.Context) ([]Definition, error) {
	movies, err := r.catalog.QueryEntities(ctx, catalog.Filter{
		Kinds:          []catalog.Kind{catalog.KindMovie},
		ExcludeVirtual: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}

	franchises := franchise.Detect(movies, *r.opts.Discovery)
	defs := make([]Definition, len(franchises))
	for i, f := range franchises {
		defs[i] = Definition{
			Name:    f.CollectionName,
			Source:  SourceDiscovered,
			members: f.Entities(),
		}
	}
	r.logger.Debug().Int("movies", len(movies)).Int("franchises", len(defs)).Msg("franchises detected")
	return defs, nil
}

// mergeDefinitions appends discovered definitions whose names do not clash
// with a configured one.
func mergeDefinitions(configured, discovered []Definition) []Definition {
	if len(discovered) == 0 {
		return configured
	}
	taken := make(map[string]bool, len(configured))
	for _, d := range configured {
		taken[textnorm.Fold(d.Name)] = true
	}
	out := append([]Definition(nil), configured...)
	for _, d := range discovered {
		key := textnorm.Fold(d.Name)
		if taken[key] {
			continue
		}
		taken[key] = true
		out = append(out, d)
	}
	return out
}

func record(cr *CollectionReport) {
	metrics.CollectionsTotal.WithLabelValues(string(cr.Source), string(cr.Status)).Inc()
	metrics.MembersChanged.WithLabelValues("added").Add(float64(cr.Added))
	metrics.MembersChanged.WithLabelValues("removed").Add(float64(cr.Removed))
	metrics.MembersChanged.WithLabelValues("reordered").Add(float64(cr.Reordered))
	if cr.Validation != nil {
		metrics.ValidationMismatches.WithLabelValues("missing").Add(float64(cr.Validation.Missing))
		metrics.ValidationMismatches.WithLabelValues("extra").Add(float64(cr.Validation.Extra))
	}
	if len(cr.ParseErrors) > 0 {
		metrics.ParseErrors.Add(float64(len(cr.ParseErrors)))
	}
	if cr.Degraded {
		metrics.DegradedEvaluations.Inc()
	}
}
