package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when a query result does not meet an
// expectation. It includes the full result to help debug the failure.
type AssertionError struct {
	Step     int
	Type     string
	Expected string
	Actual   string
	Events   []EventView
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "step %d: assertion failed: %s\n", e.Step, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nQuery result:\n")
	for i, ev := range e.Events {
		fmt.Fprintf(&buf, "  [%d] %s tx=%d log=%d %s %v\n", i, ev.Block, ev.Tx, ev.LogIndex, ev.Address, ev.Topics)
	}

	return buf.String()
}

// evaluateQuery checks every expectation of q against the query result.
func evaluateQuery(step int, q *QueryStep, evs []EventView) []*AssertionError {
	var failures []*AssertionError

	if q.ExpectCount != nil && len(evs) != *q.ExpectCount {
		failures = append(failures, &AssertionError{
			Step:     step,
			Type:     "expect_count",
			Expected: fmt.Sprintf("%d events", *q.ExpectCount),
			Actual:   fmt.Sprintf("%d events", len(evs)),
			Events:   evs,
		})
	}

	if q.ExpectTopics != nil {
		if err := assertTopics(step, q.ExpectTopics, evs); err != nil {
			failures = append(failures, err)
		}
	}

	if q.ExpectBlocks != nil {
		if err := assertBlocks(step, q.ExpectBlocks, evs); err != nil {
			failures = append(failures, err)
		}
	}

	return failures
}

// assertTopics compares the first topic of each result, in order. Expected
// topics may be written short; they are left padded to 32 bytes.
func assertTopics(step int, expected []string, evs []EventView) *AssertionError {
	want := make([]string, len(expected))
	for i, topic := range expected {
		h, err := parseWord(topic)
		if err != nil {
			want[i] = topic
			continue
		}
		want[i] = h.Hex()
	}

	got := make([]string, len(evs))
	for i, ev := range evs {
		if len(ev.Topics) > 0 {
			got[i] = ev.Topics[0]
		}
	}

	if !equalStrings(want, got) {
		return &AssertionError{
			Step:     step,
			Type:     "expect_topics",
			Expected: strings.Join(want, ", "),
			Actual:   strings.Join(got, ", "),
			Events:   evs,
		}
	}
	return nil
}

// assertBlocks compares the block label of each result, in order.
func assertBlocks(step int, expected []string, evs []EventView) *AssertionError {
	got := make([]string, len(evs))
	for i, ev := range evs {
		got[i] = ev.Block
	}

	if !equalStrings(expected, got) {
		return &AssertionError{
			Step:     step,
			Type:     "expect_blocks",
			Expected: "[" + strings.Join(expected, " ") + "]",
			Actual:   "[" + strings.Join(got, " ") + "]",
			Events:   evs,
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
