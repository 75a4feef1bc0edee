package triage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/xaenox/reality-filter-bot/internal/archive"
	"github.com/xaenox/reality-filter-bot/internal/classifier"
	"github.com/xaenox/reality-filter-bot/internal/models"
	"github.com/xaenox/reality-filter-bot/internal/presence"
	"github.com/xaenox/reality-filter-bot/internal/storage"
)

type harness struct {
	svc      *Service
	archive  *archive.Archive
	presence *presence.Store
	metrics  *Metrics
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{now: time.Date(2026, 2, 14, 23, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }

	store := storage.NewMemoryStorage()
	h.archive = archive.New(store, archive.WithClock(clock))
	h.presence = presence.New(store, presence.WithClock(clock))
	h.metrics = NewMetrics(prometheus.NewRegistry())
	h.svc = NewService(classifier.New(), h.archive, h.presence, h.metrics, zap.NewNop())
	return h
}

func TestTriage_Delivered(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	d, err := h.svc.Triage(context.Background(), 1, "мама заболела", "Мама (@mom)")
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	if d.Deferred {
		t.Fatal("expected delivered decision")
	}
	if d.Category != models.CategoryFamily {
		t.Errorf("Category = %q, want family", d.Category)
	}
	if d.Score != 12 {
		t.Errorf("Score = %d, want 12", d.Score)
	}
	// score above 10 outranks the family advice
	if d.Advice != classifier.AdviceImportant {
		t.Errorf("Advice = %q, want %q", d.Advice, classifier.AdviceImportant)
	}
	if d.Escalate {
		t.Error("Escalate = true, want false for score 12")
	}
	if d.Text != "мама заболела" || d.Truncated {
		t.Errorf("Text = %q (truncated=%v)", d.Text, d.Truncated)
	}
	if d.SenderLabel != "Мама (@mom)" {
		t.Errorf("SenderLabel = %q", d.SenderLabel)
	}
	if d.RecordID == 0 {
		t.Error("RecordID not set")
	}
}

func TestTriage_Escalate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	d, err := h.svc.Triage(context.Background(), 1, "urgent problem", "Alice")
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	if d.Score != 15 || !d.Escalate {
		t.Errorf("Score=%d Escalate=%v, want 15/true", d.Score, d.Escalate)
	}
}

func TestTriage_LongTextTruncated(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	text := strings.Repeat("x", 500)
	d, err := h.svc.Triage(context.Background(), 1, text, "Bob")
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	if len(d.Text) != 200 || !d.Truncated {
		t.Errorf("len(Text)=%d Truncated=%v, want 200/true", len(d.Text), d.Truncated)
	}
}

func TestTriage_DeferredWhileAsleep(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	wakeAt, err := h.presence.EnterSleep(ctx, 1, 8)
	if err != nil {
		t.Fatalf("EnterSleep: %v", err)
	}

	d, err := h.svc.Triage(ctx, 1, "urgent problem", "Alice")
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	if !d.Deferred {
		t.Fatal("expected deferred decision")
	}
	if !d.WakeAt.Equal(wakeAt) {
		t.Errorf("WakeAt = %v, want %v", d.WakeAt, wakeAt)
	}
	if d.SenderLabel != "Alice" {
		t.Errorf("SenderLabel = %q, want Alice", d.SenderLabel)
	}
	if d.Text != "" || d.Advice != "" {
		t.Errorf("deferred decision leaks content: %+v", d)
	}

	// archived anyway
	counts, err := h.archive.QueryAll(ctx, 1)
	if err != nil {
		t.Fatalf("QueryAll: %v", err)
	}
	if len(counts) != 1 || counts[0].Category != models.CategoryUrgent || counts[0].Count != 1 {
		t.Errorf("QueryAll = %v, want [urgent:1]", counts)
	}
}

func TestTriage_DeliveredAfterWakeTimePasses(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.presence.EnterSleep(ctx, 1, 1); err != nil {
		t.Fatalf("EnterSleep: %v", err)
	}
	h.now = h.now.Add(61 * time.Minute)

	d, err := h.svc.Triage(ctx, 1, "hello", "Bob")
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	if d.Deferred {
		t.Error("expected delivery once the wake time has passed")
	}
}

func TestTriage_EmptyMessage(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "\n\t"} {
		h := newHarness(t)
		_, err := h.svc.Triage(context.Background(), 1, text, "Bob")
		if !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Triage(%q) error = %v, want ErrEmptyMessage", text, err)
		}
		counts, _ := h.archive.QueryAll(context.Background(), 1)
		if len(counts) != 0 {
			t.Errorf("Triage(%q) stored %v, want nothing", text, counts)
		}
		if got := testutil.ToFloat64(h.metrics.ErrorsTotal.WithLabelValues(errKindEmpty)); got != 1 {
			t.Errorf("errors{empty_message} = %v, want 1", got)
		}
	}
}

type failingArchive struct{}

func (failingArchive) Append(context.Context, int64, string, string, models.Category, int) (int64, error) {
	return 0, &storage.Error{Op: "append message", Err: errors.New("database is locked")}
}

type failingPresence struct{}

func (failingPresence) IsAsleep(context.Context, int64) (presence.Status, error) {
	return presence.Status{}, &storage.Error{Op: "get user", Err: errors.New("connection reset")}
}

func TestTriage_PersistenceFailure(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStorage()
	metrics := NewMetrics(prometheus.NewRegistry())

	svc := NewService(classifier.New(), failingArchive{}, presence.New(store), metrics, zap.NewNop())
	if _, err := svc.Triage(context.Background(), 1, "hello", "Bob"); !errors.Is(err, storage.ErrPersistence) {
		t.Errorf("archive failure: error = %v, want ErrPersistence", err)
	}

	arch := archive.New(store)
	svc = NewService(classifier.New(), arch, failingPresence{}, metrics, zap.NewNop())
	if _, err := svc.Triage(context.Background(), 1, "hello", "Bob"); !errors.Is(err, storage.ErrPersistence) {
		t.Errorf("presence failure: error = %v, want ErrPersistence", err)
	}

	if got := testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues(errKindPersistence)); got != 2 {
		t.Errorf("errors{persistence} = %v, want 2", got)
	}

	// a failure does not poison later calls
	svc = NewService(classifier.New(), arch, presence.New(store), metrics, zap.NewNop())
	if _, err := svc.Triage(context.Background(), 1, "hello", "Bob"); err != nil {
		t.Errorf("Triage after failures: %v", err)
	}
}

func TestTriage_Metrics(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.svc.Triage(ctx, 1, "срочно", "A")
	_, _ = h.presence.EnterSleep(ctx, 1, 2)
	_, _ = h.svc.Triage(ctx, 1, "казино", "B")

	if got := testutil.ToFloat64(h.metrics.MessagesTotal.WithLabelValues("urgent")); got != 1 {
		t.Errorf("messages{urgent} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.metrics.MessagesTotal.WithLabelValues("spam")); got != 1 {
		t.Errorf("messages{spam} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.metrics.DecisionsTotal.WithLabelValues(decisionDelivered)); got != 1 {
		t.Errorf("decisions{delivered} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.metrics.DecisionsTotal.WithLabelValues(decisionDeferred)); got != 1 {
		t.Errorf("decisions{deferred} = %v, want 1", got)
	}
}

func TestTriage_NilMetrics(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStorage()
	svc := NewService(classifier.New(), archive.New(store), presence.New(store), nil, zap.NewNop())
	if _, err := svc.Triage(context.Background(), 1, "hello", "Bob"); err != nil {
		t.Fatalf("Triage: %v", err)
	}
	if _, err := svc.Triage(context.Background(), 1, "", "Bob"); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("Triage(empty) error = %v", err)
	}
}
