package assembly

import (
	"time"
)

// SegmentKind distinguishes the element classes a concatenation plan can
// contain.
type SegmentKind int

const (
	// SegmentSection is a normalized voice section.
	SegmentSection SegmentKind = iota
	// SegmentTransition is the transition music bed.
	SegmentTransition
	// SegmentSilence is the fixed-length fallback when no transition bed is
	// configured.
	SegmentSilence
)

// Segment is one entry of the concatenation plan. SectionIndex is only
// meaningful for SegmentSection and points back into the input order.
type Segment struct {
	Kind         SegmentKind
	SectionIndex int
}

// BuildPlan derives the concatenation plan from the ordered sections. A
// transition is inserted between adjacent sections whose types differ and
// between adjacent topics; it renders as the transition bed when one is
// configured, otherwise as the silence fallback. Callers validate section
// order first.
func BuildPlan(sections []Section, transitionBedAvailable bool) []Segment {
	plan := make([]Segment, 0, 2*len(sections))
	for i, section := range sections {
		if i > 0 && needsTransition(sections[i-1].Type, section.Type) {
			kind := SegmentSilence
			if transitionBedAvailable {
				kind = SegmentTransition
			}
			plan = append(plan, Segment{Kind: kind, SectionIndex: -1})
		}
		plan = append(plan, Segment{Kind: SegmentSection, SectionIndex: i})
	}
	return plan
}

func needsTransition(prev, next SectionType) bool {
	if prev != next {
		return true
	}
	return prev == SectionTopic
}

// Join describes how two adjacent plan segments are merged.
type Join int

const (
	// JoinHard appends with no overlap.
	JoinHard Join = iota
	// JoinCrossfade overlaps the boundary by the configured crossfade.
	JoinCrossfade
)

// Timeline is the measured layout of a plan on the output time axis. The
// overlap a crossfade removes is attributed entirely to the transition
// segment, so section windows stay disjoint and segment durations sum
// exactly to Total.
type Timeline struct {
	// Starts holds the output-axis start of each plan segment.
	Starts []time.Duration
	// Effective holds each segment's contribution to the output duration.
	// For sections this is the measured duration; for transitions it is the
	// bed duration minus crossfade overlap at each faded boundary.
	Effective []time.Duration
	// Joins holds the merge mode for each of the len(plan)-1 boundaries.
	Joins []Join
	// Total is the resulting program duration.
	Total time.Duration
}

// ComputeTimeline lays the plan out using measured segment durations.
// Transition beds crossfade into both neighbors when the crossfade is
// positive and the bed is long enough to absorb both overlaps; short beds
// and silence segments join hard. Section start times accumulate from
// measured durations only.
func ComputeTimeline(plan []Segment, durations []time.Duration, crossfade time.Duration) Timeline {
	timeline := Timeline{
		Starts:    make([]time.Duration, len(plan)),
		Effective: make([]time.Duration, len(plan)),
	}
	if len(plan) > 1 {
		timeline.Joins = make([]Join, len(plan)-1)
	}

	var cursor time.Duration
	for i, segment := range plan {
		effective := durations[i]
		if segment.Kind == SegmentTransition && crossfadeApplies(durations[i], crossfade) {
			effective -= 2 * crossfade
			if i > 0 {
				timeline.Joins[i-1] = JoinCrossfade
			}
			if i < len(plan)-1 {
				timeline.Joins[i] = JoinCrossfade
			}
		}
		timeline.Starts[i] = cursor
		timeline.Effective[i] = effective
		cursor += effective
	}
	timeline.Total = cursor
	return timeline
}

func crossfadeApplies(bedDuration, crossfade time.Duration) bool {
	return crossfade > 0 && bedDuration >= 2*crossfade
}
