package session

import "testing"

func TestAggregatorPartialThenFinal(t *testing.T) {
	agg := NewAggregator()

	display := agg.Apply(Segment{Text: "hi"})
	if display != "hi" {
		t.Errorf("display after partial = %q, want %q", display, "hi")
	}
	if agg.Committed() != "" {
		t.Errorf("partial segment changed committed text to %q", agg.Committed())
	}

	display = agg.Apply(Segment{Text: "hi there", Final: true})
	if display != "hi there" {
		t.Errorf("display after final = %q, want %q", display, "hi there")
	}
	if agg.Committed() != "hi there" {
		t.Errorf("committed = %q, want %q", agg.Committed(), "hi there")
	}

	display = agg.Apply(Segment{Text: "next"})
	if display != "hi there next" {
		t.Errorf("display after second partial = %q, want %q", display, "hi there next")
	}
	if agg.Committed() != "hi there" {
		t.Errorf("partial segment changed committed text to %q", agg.Committed())
	}
}

func TestAggregatorCommittedGrowsOnlyOnFinals(t *testing.T) {
	agg := NewAggregator()

	agg.Apply(Segment{Text: "one", Final: true})
	agg.Apply(Segment{Text: "two", Final: true})
	if got := agg.Committed(); got != "one two" {
		t.Fatalf("committed = %q, want %q", got, "one two")
	}

	// Nothing below may shrink the committed text.
	prev := len(agg.Committed())
	for _, seg := range []Segment{
		{Text: "a partial"},
		{Text: ""},
		{Text: "", Final: true},
		{Text: "three", Final: true},
	} {
		agg.Apply(seg)
		if len(agg.Committed()) < prev {
			t.Errorf("committed shrank after segment %+v: %q", seg, agg.Committed())
		}
		prev = len(agg.Committed())
	}

	if got := agg.Committed(); got != "one two three" {
		t.Errorf("committed = %q, want %q", got, "one two three")
	}
}

func TestAggregatorEmptySegments(t *testing.T) {
	agg := NewAggregator()

	if display := agg.Apply(Segment{Text: "", Final: true}); display != "" {
		t.Errorf("empty final produced display %q", display)
	}

	agg.Apply(Segment{Text: "start", Final: true})

	if display := agg.Apply(Segment{Text: "   "}); display != "start" {
		t.Errorf("whitespace partial produced display %q, want %q", display, "start")
	}
	if display := agg.Apply(Segment{Text: "", Final: true}); display != "start" {
		t.Errorf("empty final produced display %q, want %q", display, "start")
	}
	if agg.Committed() != "start" {
		t.Errorf("committed = %q, want %q", agg.Committed(), "start")
	}
}

func TestAggregatorSingleSpaceJoin(t *testing.T) {
	agg := NewAggregator()

	agg.Apply(Segment{Text: "  padded  ", Final: true})
	agg.Apply(Segment{Text: "more", Final: true})

	if got := agg.Committed(); got != "padded more" {
		t.Errorf("committed = %q, want %q", got, "padded more")
	}

	if display := agg.Apply(Segment{Text: " tail "}); display != "padded more tail" {
		t.Errorf("display = %q, want %q", display, "padded more tail")
	}
}

func TestAggregatorReset(t *testing.T) {
	agg := NewAggregator()

	agg.Apply(Segment{Text: "first session text", Final: true})
	agg.Reset()

	if agg.Committed() != "" {
		t.Errorf("committed after reset = %q, want empty", agg.Committed())
	}
	if display := agg.Apply(Segment{Text: "fresh"}); display != "fresh" {
		t.Errorf("display after reset = %q, want %q", display, "fresh")
	}
}
