package astro

import (
	"testing"
	"time"
)

func TestCatalogLabelsInBounds(t *testing.T) {
	st := mustStation(t, "Shanghai", 31.2304, 121.4737)
	catalog := NewCatalog(4.0, 10.0)
	at := time.Date(2025, 1, 15, 16, 0, 0, 0, time.UTC) // local midnight

	labels := catalog.Labels(at, st, 1920, 1080, 20)
	if len(labels) == 0 {
		t.Fatal("expected at least one visible bright star at midnight")
	}
	for _, label := range labels {
		if label.X < 0 || label.X >= 1920 || label.Y < 0 || label.Y >= 1080 {
			t.Errorf("label %s at (%d, %d) outside frame", label.Name, label.X, label.Y)
		}
		if label.Name == "" {
			t.Error("label with empty name")
		}
	}
}

func TestCatalogLabelsBoundedByMax(t *testing.T) {
	st := mustStation(t, "Shanghai", 31.2304, 121.4737)
	catalog := NewCatalog(6.0, 0.0)
	at := time.Date(2025, 1, 15, 16, 0, 0, 0, time.UTC)

	labels := catalog.Labels(at, st, 1920, 1080, 3)
	if len(labels) > 3 {
		t.Fatalf("expected at most 3 labels, got %d", len(labels))
	}
}

func TestCatalogMagnitudeLimit(t *testing.T) {
	st := mustStation(t, "Shanghai", 31.2304, 121.4737)
	at := time.Date(2025, 1, 15, 16, 0, 0, 0, time.UTC)

	// A limit brighter than every catalog entry yields nothing.
	none := NewCatalog(-3.0, 0.0).Labels(at, st, 1920, 1080, 20)
	if len(none) != 0 {
		t.Fatalf("expected no labels below magnitude -3, got %d", len(none))
	}

	dim := NewCatalog(6.0, 0.0).Labels(at, st, 1920, 1080, 20)
	bright := NewCatalog(1.0, 0.0).Labels(at, st, 1920, 1080, 20)
	if len(bright) > len(dim) {
		t.Fatalf("tighter magnitude limit returned more stars: %d > %d", len(bright), len(dim))
	}
}

func TestNilCatalogIsSafe(t *testing.T) {
	var catalog *Catalog
	st := mustStation(t, "Shanghai", 31.2304, 121.4737)
	if labels := catalog.Labels(time.Now(), st, 1920, 1080, 20); labels != nil {
		t.Fatalf("nil catalog returned labels: %v", labels)
	}
}
