package coach

import (
	"context"
	"time"

	"github.com/growcoach/coachd/internal/logging"
	"github.com/growcoach/coachd/internal/store"
)

// SaveJob carries one turn's durable write, together with the pre-turn
// snapshot values the merge is computed against.
type SaveJob struct {
	SessionID       string
	UserID          string
	Turns           []store.Turn
	ReplyFlags      store.StageFlags
	PrevFlags       store.StageFlags
	PrevLabel       string
	PrevSummary     string
	SummarizedCount int
	Goal            *store.Goal
}

// scheduleSave enqueues the durable write keyed by session id, so saves for
// the same session execute in submission order. Fire-and-forget: the
// caller's reply has already been returned when this runs.
func (c *Coach) scheduleSave(job SaveJob) {
	c.queue.Enqueue(job.SessionID, func(ctx context.Context) {
		if err := c.runSave(ctx, job); err != nil {
			logging.Errorf("[Coach] Save failed for session %s: %v", job.SessionID, err)
		}
	})
}

// runSave performs the merge-and-upsert for one turn. Flags merge OR
// against the dispatch-time snapshot here, and the store's upsert merges
// again against the durable row, so a stale or reordered save can never
// regress a completed stage or rename a labeled session.
func (c *Coach) runSave(ctx context.Context, job SaveJob) error {
	flags := job.ReplyFlags.Merge(job.PrevFlags)

	summary, count := job.PrevSummary, job.SummarizedCount
	if c.compactor != nil {
		sctx, cancel := context.WithTimeout(ctx, c.timeout)
		s, n, err := c.compactor.Refresh(sctx, summary, job.Turns, count)
		cancel()
		if err != nil {
			// Keep the old summary and count; these turns fold in next time.
			logging.Warnf("[Coach] Summary refresh failed for session %s: %v", job.SessionID, err)
		} else {
			summary, count = s, n
		}
	}

	label := job.PrevLabel
	if label == "" && (c.labelEveryTurn || flags != job.PrevFlags) {
		lctx, cancel := context.WithTimeout(ctx, c.timeout)
		l, err := GenerateLabel(lctx, c.gateway, job.Turns, job.Goal, time.Now())
		cancel()
		if err != nil {
			logging.Warnf("[Coach] Label generation failed for session %s: %v", job.SessionID, err)
		} else if l != "" {
			label = l
			logging.Infof("[Coach] Labeled session %s: %q", job.SessionID, label)
		}
	}

	return c.store.UpsertConversation(ctx, store.ConversationUpdate{
		SessionID:       job.SessionID,
		UserID:          job.UserID,
		Turns:           job.Turns,
		Summary:         summary,
		SummarizedCount: count,
		Label:           label,
		Flags:           flags,
		Active:          true,
	})
}
