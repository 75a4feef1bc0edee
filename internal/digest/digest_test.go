package digest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/xaenox/reality-filter-bot/internal/archive"
	"github.com/xaenox/reality-filter-bot/internal/models"
	"github.com/xaenox/reality-filter-bot/internal/storage"
)

func seed(t *testing.T, arch *archive.Archive, owner int64, cats ...models.Category) {
	t.Helper()
	for _, c := range cats {
		if _, err := arch.Append(context.Background(), owner, "text", "sender", c, 5); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
}

func TestAllTime(t *testing.T) {
	t.Parallel()

	arch := archive.New(storage.NewMemoryStorage())
	seed(t, arch, 1, models.CategoryUrgent, models.CategorySpam, models.CategoryUrgent)

	r, err := New(arch).AllTime(context.Background(), 1)
	if err != nil {
		t.Fatalf("AllTime: %v", err)
	}
	if r.Total != 3 {
		t.Errorf("Total = %d, want 3", r.Total)
	}
	if len(r.Rows) != 2 {
		t.Fatalf("Rows = %+v, want 2 rows", r.Rows)
	}
	if r.Rows[0].Category != models.CategoryUrgent || r.Rows[0].Count != 2 {
		t.Errorf("Rows[0] = %+v, want urgent x2", r.Rows[0])
	}
	if r.Rows[1].Category != models.CategorySpam || r.Rows[1].Count != 1 {
		t.Errorf("Rows[1] = %+v, want spam x1", r.Rows[1])
	}
	if math.Abs(r.Rows[0].Percent-66.666) > 0.01 {
		t.Errorf("Rows[0].Percent = %.3f, want ~66.667", r.Rows[0].Percent)
	}
	if !r.Since.IsZero() {
		t.Errorf("Since = %v, want zero for all-time", r.Since)
	}
}

func TestDaily_WindowAndOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	clock := now.Add(-25 * time.Hour)
	arch := archive.New(storage.NewMemoryStorage(), archive.WithClock(func() time.Time { return clock }))

	seed(t, arch, 1, models.CategoryWork)
	clock = now.Add(-2 * time.Hour)
	seed(t, arch, 1, models.CategorySpam, models.CategorySpam, models.CategoryUrgent, models.CategoryOther)

	r, err := New(arch, WithClock(func() time.Time { return now })).Daily(context.Background(), 1)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if r.Total != 4 {
		t.Errorf("Total = %d, want 4", r.Total)
	}
	want := []models.Category{models.CategoryUrgent, models.CategorySpam, models.CategoryOther}
	if len(r.Rows) != len(want) {
		t.Fatalf("Rows = %+v, want categories %v", r.Rows, want)
	}
	for i, c := range want {
		if r.Rows[i].Category != c {
			t.Errorf("Rows[%d].Category = %q, want %q", i, r.Rows[i].Category, c)
		}
	}
	if !r.Since.Equal(now.Add(-DailyWindow)) {
		t.Errorf("Since = %v, want %v", r.Since, now.Add(-DailyWindow))
	}
}

func TestReport_EmptyAndNoisy(t *testing.T) {
	t.Parallel()

	arch := archive.New(storage.NewMemoryStorage())
	agg := New(arch)
	ctx := context.Background()

	r, err := agg.Daily(ctx, 1)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if !r.Empty() || r.Noisy() {
		t.Errorf("empty report: Empty=%v Noisy=%v", r.Empty(), r.Noisy())
	}

	cats := make([]models.Category, 21)
	for i := range cats {
		cats[i] = models.CategoryOther
	}
	seed(t, arch, 1, cats...)

	r, err = agg.Daily(ctx, 1)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if r.Empty() || !r.Noisy() {
		t.Errorf("21 messages: Empty=%v Noisy=%v, want false/true", r.Empty(), r.Noisy())
	}
}

type failingSource struct{}

func (failingSource) QuerySince(context.Context, int64, time.Time) (map[models.Category]int, error) {
	return nil, storage.ErrPersistence
}

func (failingSource) QueryAll(context.Context, int64) ([]models.CategoryCount, error) {
	return nil, storage.ErrPersistence
}

func TestSourceErrors(t *testing.T) {
	t.Parallel()

	agg := New(failingSource{})
	if _, err := agg.Daily(context.Background(), 1); !errors.Is(err, storage.ErrPersistence) {
		t.Errorf("Daily error = %v, want ErrPersistence", err)
	}
	if _, err := agg.AllTime(context.Background(), 1); !errors.Is(err, storage.ErrPersistence) {
		t.Errorf("AllTime error = %v, want ErrPersistence", err)
	}
}
