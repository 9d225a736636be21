// Package reconcile converges a managed collection to a target membership
// with as few store mutations as possible.
package reconcile

import (
	"context"

	"github.com/rs/zerolog"

	"smartcollections/internal/catalog"
)

type Engine struct {
	store  catalog.CollectionStore
	logger zerolog.Logger
}

func NewEngine(store catalog.CollectionStore, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With().Str("component", "reconcile").Logger(),
	}
}

// Reconcile makes the members of collectionID equal to target. Members not
// in target are removed in one call, missing ones are added in one call in
// canonical order, then the first out-of-order region is rewritten and the
// result is validated. A store failure stops the work and is returned as a
// *CollaboratorError; mutations already applied stay applied.
func (e *Engine) Reconcile(ctx context.Context, collectionID string, target []catalog.Entity) (*Report, error) {
	log := e.logger.With().Str("collection", collectionID).Logger()
	report := &Report{CollectionID: collectionID}

	target = uniqueByID(target)
	wanted := idSet(target)

	current, err := e.store.Members(ctx, collectionID)
	if err != nil {
		return report, e.fail("read members", collectionID, err)
	}
	present := idSet(current)

	var remove []string
	for _, m := range current {
		if _, ok := wanted[m.ID]; !ok {
			remove = append(remove, m.ID)
		}
	}
	if len(remove) > 0 {
		if err := e.store.RemoveMembers(ctx, collectionID, remove); err != nil {
			return report, e.fail("remove members", collectionID, err)
		}
		report.Removed = len(remove)
	}

	var add []catalog.Entity
	for _, t := range target {
		if _, ok := present[t.ID]; !ok {
			add = append(add, t)
		}
	}
	if len(add) > 0 {
		SortCanonical(add)
		if err := e.store.AddMembers(ctx, collectionID, ids(add)); err != nil {
			return report, e.fail("add members", collectionID, err)
		}
		report.Added = len(add)
	}

	reordered, err := e.reorder(ctx, collectionID)
	if err != nil {
		return report, err
	}
	report.Reordered = reordered

	final, err := e.store.Members(ctx, collectionID)
	if err != nil {
		return report, e.fail("read members", collectionID, err)
	}
	report.FinalSize = len(final)
	report.Validation = validate(final, target)

	if !report.Validation.OK() {
		log.Warn().
			Int("matching", report.Validation.Matching).
			Int("missing", report.Validation.Missing).
			Int("extra", report.Validation.Extra).
			Strs("missing_examples", report.Validation.MissingExamples).
			Strs("extra_examples", report.Validation.ExtraExamples).
			Msg("collection does not match its target")
	}

	log.Debug().
		Int("added", report.Added).
		Int("removed", report.Removed).
		Int("reordered", report.Reordered).
		Int("size", report.FinalSize).
		Msg("collection reconciled")

	return report, nil
}

// reorder rewrites the part of the collection that is out of canonical
// order. Members before the first divergence are never touched. From there
// on, members that already form the next canonical run in place are kept
// and only the others are removed and appended in canonical order.
func (e *Engine) reorder(ctx context.Context, collectionID string) (int, error) {
	current, err := e.store.Members(ctx, collectionID)
	if err != nil {
		return 0, e.fail("read members", collectionID, err)
	}

	canonical := append([]catalog.Entity(nil), current...)
	SortCanonical(canonical)

	start := -1
	for i := range current {
		if current[i].ID != canonical[i].ID {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, nil
	}

	kept := 0
	var move []string
	for _, m := range current[start:] {
		if m.ID == canonical[start+kept].ID {
			kept++
			continue
		}
		move = append(move, m.ID)
	}
	appendOrder := ids(canonical[start+kept:])

	if err := e.store.RemoveMembers(ctx, collectionID, move); err != nil {
		return 0, e.fail("remove members for reorder", collectionID, err)
	}
	if err := e.store.AddMembers(ctx, collectionID, appendOrder); err != nil {
		return 0, e.fail("append members for reorder", collectionID, err)
	}
	return len(move), nil
}

func (e *Engine) fail(op, collectionID string, err error) error {
	e.logger.Error().Err(err).Str("collection", collectionID).Str("op", op).Msg("collection store failed")
	return &CollaboratorError{Op: op, CollectionID: collectionID, Err: err}
}

func validate(final, target []catalog.Entity) Validation {
	var v Validation
	have := idSet(final)
	wanted := idSet(target)

	for _, t := range target {
		if _, ok := have[t.ID]; ok {
			v.Matching++
			continue
		}
		v.Missing++
		if len(v.MissingExamples) < maxExamples {
			v.MissingExamples = append(v.MissingExamples, t.Label())
		}
	}
	for _, f := range final {
		if _, ok := wanted[f.ID]; ok {
			continue
		}
		v.Extra++
		if len(v.ExtraExamples) < maxExamples {
			v.ExtraExamples = append(v.ExtraExamples, f.Label())
		}
	}
	return v
}

func uniqueByID(es []catalog.Entity) []catalog.Entity {
	seen := make(map[string]struct{}, len(es))
	out := make([]catalog.Entity, 0, len(es))
	for _, e := range es {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func idSet(es []catalog.Entity) map[string]struct{} {
	set := make(map[string]struct{}, len(es))
	for _, e := range es {
		set[e.ID] = struct{}{}
	}
	return set
}

func ids(es []catalog.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}
