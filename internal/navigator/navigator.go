// Package navigator drives the per-chat menu state machine: it resolves
// callback actions against the session, consults the catalog and either
// renders the next menu or hands a leaf to the delivery pipeline.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/farid/maktaba/internal/action"
	"github.com/farid/maktaba/internal/catalog"
	"github.com/farid/maktaba/internal/delivery"
	"github.com/farid/maktaba/internal/metrics"
	"github.com/farid/maktaba/internal/session"
	"github.com/farid/maktaba/internal/ui"
)

// menu depths, counted as selected segments. Levels past the course are
// sections, which may nest arbitrarily deep.
const (
	depthRoot     = 0
	depthYear     = 1
	depthCategory = 2
	depthCourse   = 3
)

// Deliverer runs the file delivery for a resolved leaf
type Deliverer interface {
	Run(ctx context.Context, sess *session.Session, leaf delivery.Leaf) (delivery.Result, error)
}

// TypingNotifier shows the chat a typing indicator while a menu is prepared
type TypingNotifier interface {
	SendTyping(ctx context.Context, chatID int64)
}

// Navigator is the navigation state machine shared by all chats. Per-chat
// serialization is the dispatcher's job; the navigator itself only touches
// the one session handed to it per event.
type Navigator struct {
	sessions  *session.Store
	index     *catalog.Index
	renderer  *ui.Renderer
	deliverer Deliverer
	typing    TypingNotifier
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// New creates a navigator. typing and m may be nil.
func New(
	sessions *session.Store,
	index *catalog.Index,
	renderer *ui.Renderer,
	deliverer Deliverer,
	typing TypingNotifier,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Navigator {
	return &Navigator{
		sessions:  sessions,
		index:     index,
		renderer:  renderer,
		deliverer: deliverer,
		typing:    typing,
		metrics:   m,
		logger:    logger.With().Str("component", "navigator").Logger(),
	}
}

// Start resets the chat's session and renders the root menu. A reset aborts
// any delivery still running for the chat.
func (n *Navigator) Start(ctx context.Context, chatID int64) error {
	n.sessions.Reset(chatID)
	sess := n.sessions.GetOrCreate(chatID)
	return n.renderLevel(ctx, sess, n.index.Snapshot())
}

// Menu returns the chat to the root menu without dropping the action cache,
// so buttons on still-visible older menus keep working.
func (n *Navigator) Menu(ctx context.Context, chatID int64) error {
	sess := n.sessions.GetOrCreate(chatID)
	sess.Touch()
	sess.SetStack(nil)
	return n.renderLevel(ctx, sess, n.index.Snapshot())
}

// HandleCallback processes one menu selection. Every outcome, including an
// unrecognized or expired token, ends in a user-visible message; errors are
// returned only when even that message could not be sent.
func (n *Navigator) HandleCallback(ctx context.Context, chatID int64, data string) error {
	start := time.Now()
	sess := n.sessions.GetOrCreate(chatID)
	sess.Touch()

	act := action.Decode(data)
	defer func() {
		if n.metrics != nil {
			n.metrics.ObserveEvent(act.Kind.String(), time.Since(start))
		}
	}()

	logger := n.logger.With().Int64("chat_id", chatID).Str("action", act.Kind.String()).Logger()

	switch act.Kind {
	case action.GoMenu:
		sess.SetStack(nil)
		return n.renderLevel(ctx, sess, n.index.Snapshot())

	case action.GoBack:
		sess.Pop()
		return n.renderLevel(ctx, sess, n.index.Snapshot(sess.Stack()...))

	case action.SelectYear, action.SelectCategory, action.SelectCourse, action.SelectSubcourse:
		return n.handleSelection(ctx, sess, act, logger)

	default:
		if n.metrics != nil {
			n.metrics.InvalidActions.Inc()
		}
		logger.Warn().Str("data", data).Msg("Unrecognized callback payload")
		return n.renderer.Notice(ctx, chatID, "⚠️ Invalid selection.", sess.RecordMessage)
	}
}

// handleSelection resolves the action token, realigns the navigation stack
// to the selected path and either renders the next level or delivers.
func (n *Navigator) handleSelection(ctx context.Context, sess *session.Session, act action.Action, logger zerolog.Logger) error {
	chatID := sess.ChatID()

	path, err := sess.Resolve(act.Token)
	if errors.Is(err, session.ErrExpired) {
		if n.metrics != nil {
			n.metrics.ExpiredSessions.Inc()
		}
		logger.Info().Msg("Action token expired")
		return n.renderer.Notice(ctx, chatID, "⚠️ This menu has expired. Send /start to begin again.", sess.RecordMessage)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve action token: %w", err)
	}

	segments, ok := n.segmentsFor(path)
	if !ok {
		logger.Warn().Str("path", path).Msg("Cached path escapes the catalog")
		return n.renderer.Notice(ctx, chatID, "⚠️ Invalid selection.", sess.RecordMessage)
	}

	// An old menu's button may not match the current depth. The stack
	// follows the selection, so going back always walks the clicked path.
	sess.SetStack(segments)

	listing := n.index.Snapshot(segments...)

	// From course depth on, a directory without sub-folders is a leaf.
	// Sections may nest, so anything that still has sub-folders renders
	// another menu level instead.
	if len(segments) >= depthCourse && len(listing.Dirs) == 0 {
		return n.deliver(ctx, sess, listing, logger)
	}
	return n.renderLevel(ctx, sess, listing)
}

// deliver hands the listing's files to the pipeline, tagged with the
// category segment that picks the classification rule.
func (n *Navigator) deliver(ctx context.Context, sess *session.Session, listing catalog.Listing, logger zerolog.Logger) error {
	chatID := sess.ChatID()

	if sess.Delivering() {
		return n.renderer.Notice(ctx, chatID, "⏳ A delivery is already in progress.", sess.RecordMessage)
	}

	path, ok := n.index.Join(listing.Segments...)
	if !ok {
		return n.renderer.Notice(ctx, chatID, "⚠️ Invalid selection.", sess.RecordMessage)
	}

	// The course segment carries the classification label: a course under
	// "videos" is delivered as reference text, anything else as documents.
	leaf := delivery.Leaf{
		Path:     path,
		Files:    listing.Files,
		Category: listing.Segments[depthCourse-1],
	}

	_, err := n.deliverer.Run(ctx, sess, leaf)
	switch {
	case errors.Is(err, delivery.ErrCancelled):
		// The chat was reset mid-run; the new session gets no error.
		logger.Info().Msg("Delivery aborted by reset")
		return nil
	case errors.Is(err, session.ErrDeliveryInFlight):
		return n.renderer.Notice(ctx, chatID, "⏳ A delivery is already in progress.", sess.RecordMessage)
	case err != nil:
		return fmt.Errorf("delivery failed: %w", err)
	}
	return nil
}

// renderLevel renders the menu for one catalog listing, or an availability
// notice when the level has nothing to choose.
func (n *Navigator) renderLevel(ctx context.Context, sess *session.Session, listing catalog.Listing) error {
	chatID := sess.ChatID()
	depth := len(listing.Segments)

	if n.typing != nil {
		n.typing.SendTyping(ctx, chatID)
	}

	if len(listing.Dirs) == 0 {
		return n.renderer.Notice(ctx, chatID, emptyNotice(depth), sess.RecordMessage)
	}

	kind := action.KindForDepth(depth)

	spec := ui.Spec{Numbered: depth >= depthCategory}
	for _, name := range listing.Dirs {
		path, ok := n.index.Join(append(append([]string(nil), listing.Segments...), name)...)
		if !ok {
			continue
		}

		token, err := sess.NewToken(path)
		if err != nil {
			return fmt.Errorf("failed to mint action token: %w", err)
		}
		data, err := action.Encode(action.Action{Kind: kind, Token: token})
		if err != nil {
			return fmt.Errorf("failed to encode action: %w", err)
		}

		spec.Items = append(spec.Items, ui.Button{Label: levelLabel(depth, name), Data: data})
	}

	if depth >= depthYear {
		spec.MenuData = mustEncode(action.Action{Kind: action.GoMenu})
	}
	if depth >= depthCategory {
		spec.BackData = mustEncode(action.Action{Kind: action.GoBack})
	}

	return n.renderer.Menu(ctx, chatID, levelTitle(depth), ui.Build(spec), sess.RecordMessage)
}

// segmentsFor splits a cached absolute path back into catalog segments
func (n *Navigator) segmentsFor(path string) ([]string, bool) {
	rel, err := filepath.Rel(n.index.Base(), path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, false
	}

	segments := strings.Split(rel, string(filepath.Separator))
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return nil, false
		}
	}
	return segments, true
}

// levelLabel renders a segment name for its menu level. Category names are
// shown upper-cased, everything else keeps its prettified casing.
func levelLabel(depth int, name string) string {
	label := ui.Label(name)
	if depth == depthYear {
		return strings.ToUpper(label)
	}
	return label
}

func levelTitle(depth int) string {
	switch depth {
	case depthRoot:
		return "📚 Choose a year"
	case depthYear:
		return "🗂 Choose a category"
	case depthCategory:
		return "📖 Choose a course"
	default:
		return "📂 Choose a section"
	}
}

func emptyNotice(depth int) string {
	switch depth {
	case depthRoot:
		return "⚠️ No materials found."
	case depthYear:
		return "⚠️ No categories available."
	case depthCategory:
		return "⚠️ No courses available."
	default:
		return "⚠️ No sections available."
	}
}

// mustEncode is for the fixed-size literal actions that cannot exceed the
// payload bound.
func mustEncode(a action.Action) string {
	data, err := action.Encode(a)
	if err != nil {
		panic(err)
	}
	return data
}
