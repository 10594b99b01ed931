package internaldefs

import (
	"testing"

	"github.com/MrEthical07/authsvc"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	seen := make(map[authsvc.MetricID]bool, len(CounterDefs))
	names := make(map[string]bool, len(CounterDefs))
	for _, d := range CounterDefs {
		if seen[d.ID] {
			t.Fatalf("duplicate id %d", d.ID)
		}
		if names[d.Name] {
			t.Fatalf("duplicate name %s", d.Name)
		}
		seen[d.ID] = true
		names[d.Name] = true
	}
	if got, want := len(CounterDefs)+len(HistogramDefs), authsvc.MetricCount; got != want {
		t.Fatalf("definitions cover %d metrics, engine has %d", got, want)
	}
}

func TestBuckets(t *testing.T) {
	labels := BoundLabels()
	if len(labels) != BucketCount || labels[0] != "0.005" || labels[BucketCount-1] != "+Inf" {
		t.Fatalf("unexpected labels %v", labels)
	}

	raw := NormalizeBuckets([]uint64{1, 2, 3})
	if len(raw) != BucketCount {
		t.Fatalf("expected %d buckets, got %d", BucketCount, len(raw))
	}
	cum := CumulativeBuckets(raw)
	if cum[2] != 6 || cum[BucketCount-1] != 6 {
		t.Fatalf("unexpected cumulative buckets %v", cum)
	}
}
