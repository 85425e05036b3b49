package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/networknest/networknest/internal/monitoring"
	"github.com/networknest/networknest/internal/testutil"
	"github.com/networknest/networknest/pkg/models"
)

func newRunRepo(t *testing.T) *monitoring.RunRepository {
	t.Helper()
	st := testutil.NewStore(t)
	if err := monitoring.EnsureSchema(context.Background(), st); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return monitoring.NewRunRepository(st)
}

func TestRunRepository_CreateAndFinish(t *testing.T) {
	repo := newRunRepo(t)
	ctx := context.Background()

	run := &models.DiscoveryRun{UserID: "alice", Method: "scan", Target: "192.168.1.0/24"}
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if run.ID == "" {
		t.Error("Create did not generate an ID")
	}
	if run.StartedAt == "" {
		t.Error("StartedAt not set by Create")
	}
	if run.Status != monitoring.RunRunning {
		t.Errorf("Status = %q, want %q", run.Status, monitoring.RunRunning)
	}

	if err := repo.Finish(ctx, run.ID, monitoring.RunCompleted, 7, ""); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got, err := repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != monitoring.RunCompleted || got.Devices != 7 {
		t.Errorf("run = %s/%d, want completed/7", got.Status, got.Devices)
	}
	if got.EndedAt == "" {
		t.Error("EndedAt not set by Finish")
	}
	if got.Target != "192.168.1.0/24" {
		t.Errorf("Target = %q", got.Target)
	}
}

func TestRunRepository_FailedRunKeepsError(t *testing.T) {
	repo := newRunRepo(t)
	ctx := context.Background()

	run := &models.DiscoveryRun{UserID: "alice", Method: "unifi", Target: "10.0.0.2"}
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Finish(ctx, run.ID, monitoring.RunFailed, 0, "controller unreachable"); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got, err := repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ErrorMsg != "controller unreachable" {
		t.Errorf("ErrorMsg = %q", got.ErrorMsg)
	}
}

func TestRunRepository_NotFound(t *testing.T) {
	repo := newRunRepo(t)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, monitoring.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
	if err := repo.Finish(ctx, "missing", monitoring.RunCompleted, 0, ""); !errors.Is(err, monitoring.ErrNotFound) {
		t.Errorf("Finish missing = %v, want ErrNotFound", err)
	}
}

func TestRunRepository_ListByUser(t *testing.T) {
	repo := newRunRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, user := range []string{"alice", "alice", "bob"} {
		run := &models.DiscoveryRun{
			UserID:    user,
			Method:    "scan",
			StartedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		}
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	res, err := repo.List(ctx, "alice", monitoring.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 2 || len(res.Items) != 2 {
		t.Fatalf("List = %d items (total %d), want 2", len(res.Items), res.Total)
	}
	if res.Items[0].StartedAt < res.Items[1].StartedAt {
		t.Error("runs not ordered newest first")
	}

	asc, err := repo.List(ctx, "alice", monitoring.ListOptions{SortOrder: "asc"})
	if err != nil {
		t.Fatalf("List asc: %v", err)
	}
	if asc.Items[0].StartedAt > asc.Items[1].StartedAt {
		t.Error("runs not ordered oldest first")
	}
}
