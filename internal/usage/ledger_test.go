package usage

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/models"
)

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		model      string
		prompt     int
		completion int
		want       float64
	}{
		{"gpt-4o-mini", 1_000_000, 1_000_000, 0.75},
		{"gpt-4o", 1_000_000, 0, 2.50},
		{"gpt-3.5-turbo", 0, 1_000_000, 1.50},
		{"claude-3-haiku-20240307", 1_000_000, 0, 3.00},
		{"some-unknown-model", 1_000_000, 1_000_000, 20.00},
		{"gpt-4o-mini", 0, 0, 0},
	}

	for _, tt := range tests {
		got := EstimateCost(tt.model, tt.prompt, tt.completion)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("EstimateCost(%q, %d, %d) = %v, want %v", tt.model, tt.prompt, tt.completion, got, tt.want)
		}
	}
}

func TestRecordComputesCostAtWriteTime(t *testing.T) {
	repo := database.NewMemoryUsageRepository()
	ledger := NewLedger(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tokens := models.TokenUsage{PromptTokens: 2000, CompletionTokens: 500, TotalTokens: 2500}
	err := ledger.Record(context.Background(), "proj-1", ActionSignalDetection, "gpt-4o-mini", tokens, map[string]string{"signals": "2"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	rows := repo.All()
	if len(rows) != 1 {
		t.Fatalf("row count = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.ActionType != ActionSignalDetection {
		t.Errorf("action = %q", row.ActionType)
	}
	want := EstimateCost("gpt-4o-mini", 2000, 500)
	if math.Abs(row.EstimatedCost-want) > 1e-12 {
		t.Errorf("cost = %v, want %v", row.EstimatedCost, want)
	}
	if row.Metadata["signals"] != "2" {
		t.Error("metadata not preserved")
	}
}

func TestTotalCostSinceScopesByProjectAndWindow(t *testing.T) {
	repo := database.NewMemoryUsageRepository()
	ledger := NewLedger(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	old := models.UsageLog{ID: "u1", ProjectID: "proj-1", EstimatedCost: 0.10, CreatedAt: time.Now().Add(-48 * time.Hour)}
	recent := models.UsageLog{ID: "u2", ProjectID: "proj-1", EstimatedCost: 0.25, CreatedAt: time.Now()}
	other := models.UsageLog{ID: "u3", ProjectID: "proj-2", EstimatedCost: 1.00, CreatedAt: time.Now()}
	for _, row := range []models.UsageLog{old, recent, other} {
		if err := repo.Insert(ctx, row); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	total, err := ledger.TotalCostSince(ctx, "proj-1", time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("TotalCostSince: %v", err)
	}
	if math.Abs(total-0.25) > 1e-12 {
		t.Errorf("total = %v, want 0.25", total)
	}
}
