package assembly

import (
	"errors"
	"testing"

	"mixdown/internal/services"
)

func TestParseSectionType(t *testing.T) {
	cases := []struct {
		input string
		want  SectionType
	}{
		{"intro", SectionIntro},
		{"Topic", SectionTopic},
		{"synthesis", SectionSynthesis},
		{"outro", SectionSynthesis},
		{" INTRO ", SectionIntro},
	}
	for _, tc := range cases {
		got, err := ParseSectionType(tc.input)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q = %v, want %v", tc.input, got, tc.want)
		}
	}

	if _, err := ParseSectionType("interlude"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown type, got %v", err)
	}
}

func TestDisplayTitle(t *testing.T) {
	explicit := Section{Type: SectionTopic, Title: "Kernel News"}
	if got := explicit.DisplayTitle(3); got != "Kernel News" {
		t.Fatalf("explicit title lost: %q", got)
	}

	topic := Section{Type: SectionTopic}
	if got := topic.DisplayTitle(2); got != "Topic 2" {
		t.Fatalf("generated topic title = %q", got)
	}

	intro := Section{Type: SectionIntro}
	if got := intro.DisplayTitle(0); got != "Intro" {
		t.Fatalf("generated intro title = %q", got)
	}
}

func TestValidateOrder(t *testing.T) {
	valid := []Section{
		{Type: SectionIntro, Source: "intro.wav"},
		{Type: SectionTopic, Source: "t1.wav"},
		{Type: SectionTopic, Source: "t2.wav"},
		{Type: SectionSynthesis, Source: "outro.wav"},
	}
	if err := ValidateOrder(valid); err != nil {
		t.Fatalf("valid order rejected: %v", err)
	}

	if err := ValidateOrder(nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty list: %v", err)
	}

	lateIntro := []Section{
		{Type: SectionTopic, Source: "t1.wav"},
		{Type: SectionIntro, Source: "intro.wav"},
	}
	if err := ValidateOrder(lateIntro); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("late intro: %v", err)
	}

	topicAfterSynthesis := []Section{
		{Type: SectionSynthesis, Source: "s.wav"},
		{Type: SectionTopic, Source: "t.wav"},
	}
	if err := ValidateOrder(topicAfterSynthesis); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("topic after synthesis: %v", err)
	}

	missingSource := []Section{{Type: SectionTopic}}
	if err := ValidateOrder(missingSource); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("missing source: %v", err)
	}
}
