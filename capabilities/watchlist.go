package capabilities

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// WatchlistEntry is one tracked task.
type WatchlistEntry struct {
	TaskID   string     `json:"task_id"`
	Reason   string     `json:"reason"`
	Deadline *time.Time `json:"deadline,omitempty"`
	AddedAt  time.Time  `json:"added_at"`
}

// Watchlist keeps an in-process list of tasks flagged for follow-up.
// Entries live for the lifetime of the process. It mutates state, so
// steps only reach it on execute-confirmed runs.
type Watchlist struct {
	mu      sync.Mutex
	entries map[string]WatchlistEntry
	logger  core.Logger
	now     func() time.Time
}

// NewWatchlist creates an empty watchlist.
func NewWatchlist(logger core.Logger) *Watchlist {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Watchlist{
		entries: make(map[string]WatchlistEntry),
		logger:  logger,
		now:     time.Now,
	}
}

func (c *Watchlist) Name() string { return "watchlist" }

func (c *Watchlist) Metadata() core.CapabilityMetadata {
	return core.CapabilityMetadata{
		Name:        "watchlist",
		Description: "Adds the current task to a follow-up watchlist, or lists tracked tasks",
		Tags:        []string{"watchlist", "tracking"},
		SideEffect:  core.SideEffectStateWrite,
		Parameters: []core.CapabilityParameter{
			{Name: "action", Type: "string", Description: "What to do, defaults to add",
				Enum: []string{"add", "list"}},
			{Name: "reason", Type: "string", Description: "Why the task needs follow-up, defaults to the step description"},
		},
	}
}

func (c *Watchlist) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	action := stringParam(req.Params, "action")
	if action == "" {
		action = "add"
	}

	switch action {
	case "add":
		return c.add(req), nil
	case "list":
		return c.list(), nil
	default:
		return &core.CapabilityResult{
			Capability: c.Name(),
			Success:    false,
			Error:      fmt.Sprintf("unknown action %q: want add or list", action),
		}, nil
	}
}

func (c *Watchlist) add(req core.CapabilityRequest) *core.CapabilityResult {
	if req.Task.ID == "" {
		return &core.CapabilityResult{
			Capability: c.Name(),
			Success:    false,
			Error:      "task has no id to track",
		}
	}

	reason := stringParam(req.Params, "reason")
	if reason == "" {
		reason = req.Step.Description
	}

	c.mu.Lock()
	existing, updated := c.entries[req.Task.ID]
	entry := WatchlistEntry{
		TaskID:   req.Task.ID,
		Reason:   reason,
		Deadline: req.Task.Deadline,
		AddedAt:  c.now().UTC(),
	}
	if updated {
		entry.AddedAt = existing.AddedAt
	}
	c.entries[req.Task.ID] = entry
	total := len(c.entries)
	c.mu.Unlock()

	c.logger.Info("Watchlist entry recorded", map[string]interface{}{
		"operation": "watchlist_add",
		"task_id":   req.Task.ID,
		"updated":   updated,
		"total":     total,
	})

	verb := "added to"
	if updated {
		verb = "updated on"
	}
	return &core.CapabilityResult{
		Capability: c.Name(),
		Success:    true,
		Outputs: map[string]interface{}{
			"task_id": req.Task.ID,
			"updated": updated,
			"total":   total,
		},
		Summary: fmt.Sprintf("Task %s %s the watchlist (%d tracked).", req.Task.ID, verb, total),
	}
}

func (c *Watchlist) list() *core.CapabilityResult {
	entries := c.Entries()

	listed := make([]map[string]interface{}, len(entries))
	for i, e := range entries {
		item := map[string]interface{}{
			"task_id":  e.TaskID,
			"reason":   e.Reason,
			"added_at": e.AddedAt.Format(time.RFC3339),
		}
		if e.Deadline != nil {
			item["deadline"] = e.Deadline.UTC().Format(time.RFC3339)
		}
		listed[i] = item
	}

	return &core.CapabilityResult{
		Capability: c.Name(),
		Success:    true,
		Outputs: map[string]interface{}{
			"entries": listed,
			"total":   len(entries),
		},
		Summary: fmt.Sprintf("Watchlist has %d tracked task(s).", len(entries)),
	}
}

// Entries returns a snapshot sorted by deadline, soonest first; entries
// without deadlines sort last, then by insertion time.
func (c *Watchlist) Entries() []WatchlistEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]WatchlistEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Deadline, out[j].Deadline
		switch {
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.Before(*dj)
		case di != nil && dj == nil:
			return true
		case di == nil && dj != nil:
			return false
		default:
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
	})
	return out
}
