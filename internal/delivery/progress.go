package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/farid/maktaba/internal/session"
)

// progressTracker owns the single progress message a run edits in place.
// Edits are issued only when the floor percentage advances, throttled to the
// configured interval; the final 100% edit always goes through.
type progressTracker struct {
	pipeline  *Pipeline
	sess      *session.Session
	total     int
	messageID int
	lastPct   int
	lastEdit  time.Time
}

func (p *Pipeline) newProgress(ctx context.Context, sess *session.Session, total int) *progressTracker {
	tracker := &progressTracker{
		pipeline: p,
		sess:     sess,
		total:    total,
	}

	id, err := p.gw.SendText(ctx, sess.ChatID(), progressText(0))
	if err != nil {
		p.logger.Warn().Err(err).Int64("chat_id", sess.ChatID()).Msg("Failed to send progress message")
		return tracker
	}

	tracker.messageID = id
	tracker.lastEdit = time.Now()
	sess.RecordMessage(id)
	return tracker
}

// update reports that `done` of `total` files have been handled
func (t *progressTracker) update(ctx context.Context, done int) {
	if t.messageID == 0 || t.total == 0 {
		return
	}

	pct := done * 100 / t.total
	if pct <= t.lastPct {
		return
	}
	if pct < 100 && time.Since(t.lastEdit) < t.pipeline.cfg.ProgressInterval {
		return
	}

	if err := t.pipeline.gw.EditText(ctx, t.sess.ChatID(), t.messageID, progressText(pct)); err != nil {
		t.pipeline.logger.Debug().Err(err).Msg("Progress edit failed")
		return
	}
	t.lastPct = pct
	t.lastEdit = time.Now()
}

// finish removes the progress message once the run is over. Cleanup uses its
// own context so a cancelled run still tidies the chat.
func (t *progressTracker) finish(cancelled bool) {
	if t.messageID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.pipeline.gw.DeleteMessage(ctx, t.sess.ChatID(), t.messageID); err != nil {
		t.pipeline.logger.Debug().Err(err).Bool("cancelled", cancelled).Msg("Failed to delete progress message")
	}
}

func progressText(pct int) string {
	return fmt.Sprintf("📦 Sending files... %d%%", pct)
}
