package tagservice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/autotag/internal/apperr"
	"github.com/starford/autotag/internal/document"
	"github.com/starford/autotag/internal/models"
	"github.com/starford/autotag/internal/tagging"
	"github.com/starford/autotag/internal/testutil"
)

// fakeLLM answers every prompt with response, or fails prompts containing "FAIL".
type fakeLLM struct {
	mu         sync.Mutex
	response   string
	err        error
	calls      int
	onGenerate func()
	models     []string
	listErr    error
}

func (f *fakeLLM) Generate(_ context.Context, _, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	hook := f.onGenerate
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if f.err != nil {
		return "", f.err
	}
	if strings.Contains(prompt, "FAIL") {
		return "", apperr.ErrNetwork
	}
	return f.response, nil
}

func (f *fakeLLM) ListModels(context.Context) ([]string, error) {
	return f.models, f.listErr
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Notify(e models.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []models.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type env struct {
	dir string
	svc *Service
	llm *fakeLLM
	rec *recorder
}

func newEnv(t *testing.T, st *models.State) *env {
	t.Helper()
	dir, store := testutil.TestVault(t)
	llm := &fakeLLM{response: "A short summary."}
	rec := &recorder{}
	svc := New(Config{
		Store:       store,
		State:       testutil.TestState(t, st),
		Synthesizer: tagging.NewEngine(llm),
		Models:      llm,
		Notifier:    rec,
		Logger:      testutil.Logger(),
		Concurrency: 2,
	})
	return &env{dir: dir, svc: svc, llm: llm, rec: rec}
}

// recorded reports whether path has a tagging record entry.
func (e *env) recorded(path string) (int64, bool) {
	ms, ok := e.svc.State().Snapshot().TaggedFiles[path]
	return ms, ok
}

func withModel(vocab ...string) *models.State {
	model := "llama3.2"
	return &models.State{SelectedModel: &model, DefaultTags: vocab, TaggedFiles: models.TaggingRecord{}}
}

func TestTagDocument_WritesAndRecords(t *testing.T) {
	e := newEnv(t, withModel("ml"))
	testutil.WriteDoc(t, e.dir, "notes/a.md", "I study ml today")

	out, err := e.svc.TagDocument(context.Background(), "notes/a.md")
	if err != nil {
		t.Fatalf("TagDocument: %v", err)
	}
	if out != OutcomeTagged {
		t.Errorf("outcome = %q", out)
	}
	got := testutil.ReadDoc(t, e.dir, "notes/a.md")
	if !document.HasMarker(got) {
		t.Errorf("document has no block: %q", got)
	}
	if !strings.HasSuffix(got, "#ml\n\nI study ml today") {
		t.Errorf("inner content wrong: %q", got)
	}
	if _, ok := e.recorded("notes/a.md"); !ok {
		t.Error("tagging record not updated")
	}
	if k := e.rec.kinds(); len(k) != 1 || k[0] != models.EventTagged {
		t.Errorf("events = %v", k)
	}
}

func TestTagDocument_CleansRecordKey(t *testing.T) {
	e := newEnv(t, withModel("ml"))
	testutil.WriteDoc(t, e.dir, "notes/a.md", "I study ml today")
	testutil.WriteDoc(t, e.dir, "b.md", "ml again")

	if _, err := e.svc.TagDocument(context.Background(), "./notes//a.md"); err != nil {
		t.Fatalf("TagDocument: %v", err)
	}
	if _, err := e.svc.TagDocument(context.Background(), "notes/../b.md"); err != nil {
		t.Fatalf("TagDocument: %v", err)
	}
	snap := e.svc.State().Snapshot()
	if len(snap.TaggedFiles) != 2 {
		t.Fatalf("record = %v", snap.TaggedFiles)
	}
	for _, p := range []string{"notes/a.md", "b.md"} {
		if _, ok := e.recorded(p); !ok {
			t.Errorf("record key %q missing: %v", p, snap.TaggedFiles)
		}
	}
	if n, err := e.svc.PruneRecord(); err != nil || n != 0 {
		t.Errorf("prune removed %d (err %v), want 0", n, err)
	}

	if _, err := e.svc.UntagDocument(context.Background(), "./b.md"); err != nil {
		t.Fatalf("UntagDocument: %v", err)
	}
	if _, ok := e.recorded("b.md"); ok {
		t.Error("untag through an unclean path kept the record")
	}
}

func TestTagDocument_ConcurrentEditDiscardsResult(t *testing.T) {
	e := newEnv(t, withModel())
	testutil.WriteDoc(t, e.dir, "a.md", "version A")
	e.llm.onGenerate = func() { testutil.WriteDoc(t, e.dir, "a.md", "version B") }

	_, err := e.svc.TagDocument(context.Background(), "a.md")
	if !errors.Is(err, apperr.ErrConcurrentEdit) {
		t.Fatalf("err = %v, want ErrConcurrentEdit", err)
	}
	if got := testutil.ReadDoc(t, e.dir, "a.md"); got != "version B" {
		t.Errorf("user edit lost: %q", got)
	}
	if _, ok := e.recorded("a.md"); ok {
		t.Error("record must not be written on a discarded result")
	}
	if len(e.rec.kinds()) != 0 {
		t.Errorf("concurrent edit must be silent, got %v", e.rec.kinds())
	}
}

func TestTagDocument_NoModel(t *testing.T) {
	e := newEnv(t, &models.State{})
	testutil.WriteDoc(t, e.dir, "a.md", "text")

	_, err := e.svc.TagDocument(context.Background(), "a.md")
	if !errors.Is(err, apperr.ErrNoModelSelected) {
		t.Fatalf("err = %v", err)
	}
	if e.llm.callCount() != 0 {
		t.Error("LLM called without a model")
	}
}

func TestTagDocument_EmptyContent(t *testing.T) {
	e := newEnv(t, withModel())
	testutil.WriteDoc(t, e.dir, "a.md", "  \n\t\n")

	_, err := e.svc.TagDocument(context.Background(), "a.md")
	if !errors.Is(err, apperr.ErrEmptyContent) {
		t.Fatalf("err = %v", err)
	}
	if e.llm.callCount() != 0 {
		t.Error("LLM called for empty document")
	}
}

func TestTagDocument_NotFound(t *testing.T) {
	e := newEnv(t, withModel())
	_, err := e.svc.TagDocument(context.Background(), "missing.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestTagDocument_NetworkErrorLeavesDocument(t *testing.T) {
	e := newEnv(t, withModel())
	e.llm.err = apperr.ErrNetwork
	testutil.WriteDoc(t, e.dir, "a.md", "hello")

	_, err := e.svc.TagDocument(context.Background(), "a.md")
	if !errors.Is(err, apperr.ErrNetwork) {
		t.Fatalf("err = %v", err)
	}
	if got := testutil.ReadDoc(t, e.dir, "a.md"); got != "hello" {
		t.Errorf("document modified: %q", got)
	}
	if _, ok := e.recorded("a.md"); ok {
		t.Error("record written after failure")
	}
	if k := e.rec.kinds(); len(k) != 1 || k[0] != models.EventFailed {
		t.Errorf("events = %v", k)
	}
}

func TestTagDocument_AlreadyTaggedIsUnchanged(t *testing.T) {
	e := newEnv(t, withModel())
	content := "---\nLLM-tagged: 2026-01-01T00:00:00.000Z\n---\n\nS\n\n---\n\nbody"
	testutil.WriteDoc(t, e.dir, "a.md", content)

	out, err := e.svc.TagDocument(context.Background(), "a.md")
	if err != nil {
		t.Fatal(err)
	}
	if out != OutcomeUnchanged {
		t.Errorf("outcome = %q", out)
	}
	if e.llm.callCount() != 0 {
		t.Error("LLM called for tagged document")
	}
	if _, ok := e.recorded("a.md"); ok {
		t.Error("no-op must not record")
	}
}

func TestTagIfEligible(t *testing.T) {
	st := withModel()
	st.ExcludePatterns = []string{"private"}
	e := newEnv(t, st)
	testutil.WriteDoc(t, e.dir, "private/a.md", "secret")
	testutil.WriteDoc(t, e.dir, "b.md", "fresh")
	testutil.WriteDoc(t, e.dir, "c.md", "old")
	e.svc.State().Record("c.md", time.Now().Add(time.Hour))

	ctx := context.Background()
	if ok, err := e.svc.TagIfEligible(ctx, "private/a.md"); ok || err != nil {
		t.Errorf("excluded: ok=%v err=%v", ok, err)
	}
	if ok, err := e.svc.TagIfEligible(ctx, "c.md"); ok || err != nil {
		t.Errorf("already tagged: ok=%v err=%v", ok, err)
	}
	if ok, err := e.svc.TagIfEligible(ctx, "b.md"); !ok || err != nil {
		t.Errorf("fresh: ok=%v err=%v", ok, err)
	}
	if e.llm.callCount() != 1 {
		t.Errorf("LLM calls = %d, want 1", e.llm.callCount())
	}
	if _, err := e.svc.TagIfEligible(ctx, "nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: err = %v", err)
	}
}

func TestTagDocument_ExplicitIgnoresExclusion(t *testing.T) {
	st := withModel()
	st.ExcludePatterns = []string{"private"}
	e := newEnv(t, st)
	testutil.WriteDoc(t, e.dir, "private/a.md", "secret")

	if _, err := e.svc.TagDocument(context.Background(), "private/a.md"); err != nil {
		t.Fatal(err)
	}
	if !document.HasMarker(testutil.ReadDoc(t, e.dir, "private/a.md")) {
		t.Error("explicit tagging skipped excluded document")
	}
}

func TestUntagDocument(t *testing.T) {
	e := newEnv(t, withModel("ml"))
	testutil.WriteDoc(t, e.dir, "a.md", "I study ml today")
	ctx := context.Background()
	if _, err := e.svc.TagDocument(ctx, "a.md"); err != nil {
		t.Fatal(err)
	}

	changed, err := e.svc.UntagDocument(ctx, "a.md")
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if got := testutil.ReadDoc(t, e.dir, "a.md"); got != "I study ml today" {
		t.Errorf("got %q", got)
	}
	if _, ok := e.recorded("a.md"); ok {
		t.Error("record entry not removed")
	}
}

func TestUntagDocument_NoOpKeepsRecord(t *testing.T) {
	e := newEnv(t, withModel())
	testutil.WriteDoc(t, e.dir, "a.md", "plain")
	e.svc.State().Record("a.md", time.Now())

	changed, err := e.svc.UntagDocument(context.Background(), "a.md")
	if err != nil || changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if _, ok := e.recorded("a.md"); !ok {
		t.Error("no-op untag removed record")
	}
}

func TestTagAll(t *testing.T) {
	st := withModel()
	st.ExcludePatterns = []string{"*.draft.md"}
	e := newEnv(t, st)
	testutil.WriteDoc(t, e.dir, "a.md", "first")
	testutil.WriteDoc(t, e.dir, "b.md", "FAIL please")
	testutil.WriteDoc(t, e.dir, "c.draft.md", "excluded")
	testutil.WriteDoc(t, e.dir, "d.md", "")

	res, err := e.svc.TagAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 3 || res.Changed != 1 || res.Failed != 1 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}
	if _, ok := res.Failures["b.md"]; !ok {
		t.Errorf("failures = %v", res.Failures)
	}
	if res.RunID == "" {
		t.Error("run id missing")
	}
	if testutil.ReadDoc(t, e.dir, "c.draft.md") != "excluded" {
		t.Error("excluded document modified")
	}

	var progress int
	for _, k := range e.rec.kinds() {
		if k == models.EventProgress {
			progress++
		}
	}
	if progress != 3 {
		t.Errorf("progress events = %d, want 3", progress)
	}
}

func TestTagAll_NoModel(t *testing.T) {
	e := newEnv(t, &models.State{})
	testutil.WriteDoc(t, e.dir, "a.md", "text")
	if _, err := e.svc.TagAll(context.Background()); !errors.Is(err, apperr.ErrNoModelSelected) {
		t.Errorf("err = %v", err)
	}
}

func TestUntagAll_IgnoresExclusion(t *testing.T) {
	st := withModel()
	st.ExcludePatterns = []string{"private"}
	e := newEnv(t, st)
	tagged := "#x\n\nbody"
	testutil.WriteDoc(t, e.dir, "private/a.md", tagged)
	testutil.WriteDoc(t, e.dir, "b.md", tagged)
	testutil.WriteDoc(t, e.dir, "c.md", "plain")

	res, err := e.svc.UntagAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 3 || res.Changed != 2 || res.Unchanged != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := testutil.ReadDoc(t, e.dir, "private/a.md"); got != "body" {
		t.Errorf("got %q", got)
	}
}

func TestModels_SwallowsErrors(t *testing.T) {
	e := newEnv(t, withModel())
	e.llm.models = []string{"a", "b"}
	if got := e.svc.Models(context.Background()); len(got) != 2 {
		t.Errorf("got %v", got)
	}
	e.llm.listErr = apperr.ErrNetwork
	if got := e.svc.Models(context.Background()); got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty list", got)
	}
}

func TestDocumentRemoved(t *testing.T) {
	e := newEnv(t, withModel())
	e.svc.State().Record("gone.md", time.Now())
	e.svc.DocumentRemoved("gone.md")
	if _, ok := e.recorded("gone.md"); ok {
		t.Error("record not forgotten")
	}
}

func TestListDocuments(t *testing.T) {
	st := withModel()
	st.ExcludePatterns = []string{"private"}
	e := newEnv(t, st)
	testutil.WriteDoc(t, e.dir, "private/a.md", "x")
	testutil.WriteDoc(t, e.dir, "b.md", "y")

	docs, err := e.svc.ListDocuments()
	if err != nil {
		t.Fatal(err)
	}
	byPath := map[string]DocumentStatus{}
	for _, d := range docs {
		byPath[d.Path] = d
	}
	if d := byPath["private/a.md"]; d.Eligible || d.ExcludedBy != "private" {
		t.Errorf("private/a.md = %+v", d)
	}
	if d := byPath["b.md"]; !d.Eligible || d.TaggedAt != nil {
		t.Errorf("b.md = %+v", d)
	}
}

func TestPruneRecord(t *testing.T) {
	e := newEnv(t, withModel())
	testutil.WriteDoc(t, e.dir, "kept.md", "x")
	e.svc.State().Record("kept.md", time.Now())
	e.svc.State().Record("gone.md", time.Now())

	n, err := e.svc.PruneRecord()
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if _, ok := e.recorded("kept.md"); !ok {
		t.Error("existing document forgotten")
	}
	if _, ok := e.recorded("gone.md"); ok {
		t.Error("stale entry kept")
	}
}
