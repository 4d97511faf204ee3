package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aashrith/task-away-assistant/internal/tasks"
)

var pronouns = map[string]struct{}{
	"that":                {},
	"it":                  {},
	"this":                {},
	"the last one":        {},
	"the one we just did": {},
}

// IsPronoun reports whether identifier refers back to an earlier task rather
// than naming one.
func IsPronoun(identifier string) bool {
	key := strings.ToLower(strings.Join(strings.Fields(identifier), " "))
	_, ok := pronouns[key]
	return ok
}

type ResolutionKind int

const (
	Resolved ResolutionKind = iota
	NotFound
	Ambiguous
	Empty
	NeedsPick
)

func (k ResolutionKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case NotFound:
		return "not_found"
	case Ambiguous:
		return "ambiguous"
	case Empty:
		return "empty"
	case NeedsPick:
		return "needs_pick"
	default:
		return fmt.Sprintf("ResolutionKind(%d)", int(k))
	}
}

// Resolution is the result of mapping an identifier to a task. Task is set
// only for Resolved; Message is the clarification for every other kind.
type Resolution struct {
	Kind       ResolutionKind
	Task       tasks.Task
	Candidates []tasks.Task
	Message    string
}

// Err classifies an unresolved outcome with the package sentinels.
func (r Resolution) Err() error {
	switch r.Kind {
	case Resolved:
		return nil
	case NotFound, Empty:
		return ErrNotFound
	default:
		return ErrAmbiguous
	}
}

type Resolver struct {
	store    tasks.Store
	composer *Composer
}

func NewResolver(store tasks.Store, composer *Composer) *Resolver {
	return &Resolver{store: store, composer: composer}
}

// Candidates returns the exact id match first, then every task whose
// lowercased title contains the identifier or is contained by it.
func (r *Resolver) Candidates(ctx context.Context, identifier string) ([]tasks.Task, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	var out []tasks.Task
	seen := map[string]struct{}{}

	byID, err := r.store.GetByID(ctx, identifier)
	switch {
	case err == nil:
		out = append(out, byID)
		seen[byID.ID] = struct{}{}
	case !errors.Is(err, tasks.ErrNotFound):
		return nil, fmt.Errorf("lookup task by id: %w", err)
	}

	all, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	needle := strings.ToLower(identifier)
	for _, t := range all {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		title := strings.ToLower(t.Title)
		if title == "" {
			continue
		}
		if strings.Contains(title, needle) || strings.Contains(needle, title) {
			out = append(out, t)
			seen[t.ID] = struct{}{}
		}
	}
	return out, nil
}

// Resolve never picks among several candidates. A pronoun with no literal
// match falls back to the last affected task, then to the only task.
func (r *Resolver) Resolve(ctx context.Context, identifier, action string, ec *ExecutionContext) (Resolution, error) {
	candidates, err := r.Candidates(ctx, identifier)
	if err != nil {
		return Resolution{}, err
	}

	switch {
	case len(candidates) == 1:
		return Resolution{Kind: Resolved, Task: candidates[0], Candidates: candidates}, nil
	case len(candidates) > 1:
		return Resolution{
			Kind:       Ambiguous,
			Candidates: candidates,
			Message:    r.composer.Ambiguous(identifier, action, candidates),
		}, nil
	case !IsPronoun(identifier):
		return Resolution{Kind: NotFound, Message: NotFoundMessage(identifier)}, nil
	}

	if ec != nil {
		if id := ec.LastAffectedTaskID(); id != "" {
			task, err := r.store.GetByID(ctx, id)
			switch {
			case err == nil:
				return Resolution{Kind: Resolved, Task: task, Candidates: []tasks.Task{task}}, nil
			case !errors.Is(err, tasks.ErrNotFound):
				return Resolution{}, fmt.Errorf("lookup last affected task: %w", err)
			}
		}
	}

	all, err := r.store.List(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("list tasks: %w", err)
	}
	switch len(all) {
	case 0:
		return Resolution{Kind: Empty, Message: NoTasksYetMessage}, nil
	case 1:
		return Resolution{Kind: Resolved, Task: all[0], Candidates: all}, nil
	default:
		return Resolution{Kind: NeedsPick, Candidates: firstN(all, previewLimit), Message: r.composer.PronounPick(all)}, nil
	}
}
