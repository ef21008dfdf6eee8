package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farid/maktaba/internal/catalog"
	"github.com/farid/maktaba/internal/session"
)

type sentDoc struct {
	path     string
	filename string
}

type fakeTransport struct {
	mu     sync.Mutex
	nextID int

	texts   []string
	edits   []string
	deleted []int
	docs    []sentDoc

	failDocs map[string]bool
	sendHook func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failDocs: make(map[string]bool)}
}

func (f *fakeTransport) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.texts = append(f.texts, text)
	return f.nextID, nil
}

func (f *fakeTransport) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTransport) SendDocument(ctx context.Context, chatID int64, path, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	hook := f.sendHook
	fail := f.failDocs[filename]
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if fail {
		return assert.AnError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, sentDoc{path: path, filename: filename})
	return nil
}

func (f *fakeTransport) SendTyping(ctx context.Context, chatID int64) {}

func (f *fakeTransport) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *fakeTransport) sentDocs() []sentDoc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentDoc(nil), f.docs...)
}

type memRecorder struct {
	mu   sync.Mutex
	recs []Record
}

func (r *memRecorder) Record(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *memRecorder) all() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.recs...)
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func testPipeline(t *testing.T, base string, gw Transport, rec Recorder) *Pipeline {
	t.Helper()
	index := catalog.New(base, zerolog.Nop())
	cfg := Config{
		InterFileDelay:   time.Millisecond,
		FileTimeout:      time.Second,
		ProgressInterval: time.Millisecond,
	}
	return New(index, gw, rec, nil, cfg, zerolog.Nop())
}

func TestRunSendsDocuments(t *testing.T) {
	base := t.TempDir()
	leafDir := filepath.Join(base, "2023", "fall", "books", "Calculus")
	require.NoError(t, os.MkdirAll(leafDir, 0o755))
	writeFile(t, leafDir, "a.pdf", "aaaa")
	writeFile(t, leafDir, "b.pdf", "bbbb")

	gw := newFakeTransport()
	rec := &memRecorder{}
	pipe := testPipeline(t, base, gw, rec)

	store := session.NewStore(20, zerolog.Nop())
	sess := store.GetOrCreate(7)

	result, err := pipe.Run(context.Background(), sess, Leaf{
		Path:     leafDir,
		Files:    []string{"a.pdf", "b.pdf"},
		Category: "books",
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 2, Total: 2}, result)

	docs := gw.sentDocs()
	require.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].filename)
	assert.Equal(t, "b.pdf", docs[1].filename)

	texts := gw.sentTexts()
	require.NotEmpty(t, texts)
	assert.Equal(t, "✅ 2 of 2 sent", texts[len(texts)-1])

	recs := rec.all()
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Sent)
	assert.Equal(t, 2, recs[0].Total)
	assert.False(t, recs[0].Cancelled)
	assert.NotEmpty(t, recs[0].ID)
	assert.Equal(t, filepath.Join("2023", "fall", "books", "Calculus"), recs[0].Path)

	assert.False(t, sess.Delivering())
}

func TestRunSendsReferenceText(t *testing.T) {
	base := t.TempDir()
	leafDir := filepath.Join(base, "2023", "fall", "videos", "Algorithms")
	require.NoError(t, os.MkdirAll(leafDir, 0o755))
	writeFile(t, leafDir, "lecture1.txt", "https://example.com/lec1\n")

	gw := newFakeTransport()
	pipe := testPipeline(t, base, gw, nil)

	store := session.NewStore(20, zerolog.Nop())
	sess := store.GetOrCreate(7)

	result, err := pipe.Run(context.Background(), sess, Leaf{
		Path:     leafDir,
		Files:    []string{"lecture1.txt"},
		Category: "videos",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	assert.Empty(t, gw.sentDocs())
	assert.Contains(t, gw.sentTexts(), "https://example.com/lec1")
}

func TestRunSkipsBrokenFiles(t *testing.T) {
	base := t.TempDir()
	leafDir := filepath.Join(base, "2023", "fall", "books", "Calculus")
	require.NoError(t, os.MkdirAll(leafDir, 0o755))
	writeFile(t, leafDir, "good.pdf", "gggg")
	writeFile(t, leafDir, "empty.pdf", "")

	gw := newFakeTransport()
	gw.failDocs["bad.pdf"] = true
	writeFile(t, leafDir, "bad.pdf", "bbbb")

	pipe := testPipeline(t, base, gw, nil)
	store := session.NewStore(20, zerolog.Nop())
	sess := store.GetOrCreate(7)

	result, err := pipe.Run(context.Background(), sess, Leaf{
		Path:     leafDir,
		Files:    []string{"bad.pdf", "empty.pdf", "good.pdf", "missing.pdf"},
		Category: "books",
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 1, Total: 4}, result)

	docs := gw.sentDocs()
	require.Len(t, docs, 1)
	assert.Equal(t, "good.pdf", docs[0].filename)

	texts := gw.sentTexts()
	assert.Equal(t, "✅ 1 of 4 sent", texts[len(texts)-1])

	var warnings int
	for _, tx := range texts {
		if strings.HasPrefix(tx, "⚠️") {
			warnings++
		}
	}
	assert.Equal(t, 3, warnings)
}

func TestRunEmptyLeaf(t *testing.T) {
	base := t.TempDir()
	gw := newFakeTransport()
	pipe := testPipeline(t, base, gw, nil)
	store := session.NewStore(20, zerolog.Nop())
	sess := store.GetOrCreate(7)

	result, err := pipe.Run(context.Background(), sess, Leaf{
		Path:     base,
		Category: "books",
	})
	require.NoError(t, err)
	assert.Zero(t, result.Sent)
	assert.Contains(t, gw.sentTexts(), "⚠️ No files found.")
}

func TestRunRejectsConcurrentDelivery(t *testing.T) {
	base := t.TempDir()
	gw := newFakeTransport()
	pipe := testPipeline(t, base, gw, nil)
	store := session.NewStore(20, zerolog.Nop())
	sess := store.GetOrCreate(7)

	_, err := sess.BeginDelivery(func() {})
	require.NoError(t, err)
	defer sess.EndDelivery()

	_, err = pipe.Run(context.Background(), sess, Leaf{Path: base, Category: "books"})
	assert.ErrorIs(t, err, session.ErrDeliveryInFlight)
}

func TestRunCancelledByReset(t *testing.T) {
	base := t.TempDir()
	leafDir := filepath.Join(base, "2023", "fall", "books", "Calculus")
	require.NoError(t, os.MkdirAll(leafDir, 0o755))
	files := []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"}
	for _, name := range files {
		writeFile(t, leafDir, name, "data")
	}

	store := session.NewStore(20, zerolog.Nop())
	sess := store.GetOrCreate(7)

	gw := newFakeTransport()
	var once sync.Once
	gw.sendHook = func() {
		// Reset the chat after the first document goes out.
		once.Do(func() { store.Reset(7) })
	}

	rec := &memRecorder{}
	pipe := testPipeline(t, base, gw, rec)

	result, err := pipe.Run(context.Background(), sess, Leaf{
		Path:     leafDir,
		Files:    files,
		Category: "books",
	})
	require.ErrorIs(t, err, ErrCancelled)
	assert.True(t, result.Cancelled)
	assert.Less(t, result.Sent, len(files))

	for _, tx := range gw.sentTexts() {
		assert.NotContains(t, tx, "✅")
	}

	recs := rec.all()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Cancelled)
}

func TestProgressEditsNonDecreasing(t *testing.T) {
	base := t.TempDir()
	leafDir := filepath.Join(base, "2023", "fall", "books", "Calculus")
	require.NoError(t, os.MkdirAll(leafDir, 0o755))
	files := make([]string, 5)
	for i := range files {
		files[i] = string(rune('a'+i)) + ".pdf"
		writeFile(t, leafDir, files[i], "data")
	}

	gw := newFakeTransport()
	pipe := testPipeline(t, base, gw, nil)
	store := session.NewStore(20, zerolog.Nop())
	sess := store.GetOrCreate(7)

	_, err := pipe.Run(context.Background(), sess, Leaf{
		Path:     leafDir,
		Files:    files,
		Category: "books",
	})
	require.NoError(t, err)

	gw.mu.Lock()
	edits := append([]string(nil), gw.edits...)
	gw.mu.Unlock()
	require.NotEmpty(t, edits)

	last := -1
	for _, edit := range edits {
		var pct int
		_, scanErr := fmt.Sscanf(edit, "📦 Sending files... %d%%", &pct)
		require.NoError(t, scanErr)
		assert.GreaterOrEqual(t, pct, last)
		last = pct
	}
	assert.Equal(t, 100, last)

	// The progress message is removed once the run completes.
	gw.mu.Lock()
	deleted := len(gw.deleted)
	gw.mu.Unlock()
	assert.Equal(t, 1, deleted)
}
