package assembly

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mixdown/internal/services"
)

// SectionType classifies a narration unit. An outro is modeled as a
// synthesis section in terminal position.
type SectionType int

const (
	SectionIntro SectionType = iota
	SectionTopic
	SectionSynthesis
)

// String returns the manifest spelling of the type.
func (t SectionType) String() string {
	switch t {
	case SectionIntro:
		return "intro"
	case SectionTopic:
		return "topic"
	case SectionSynthesis:
		return "synthesis"
	default:
		return fmt.Sprintf("sectiontype(%d)", int(t))
	}
}

// ParseSectionType converts a manifest spelling into a SectionType.
func ParseSectionType(value string) (SectionType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "intro":
		return SectionIntro, nil
	case "topic":
		return SectionTopic, nil
	case "synthesis", "outro":
		return SectionSynthesis, nil
	default:
		return 0, services.Wrap(services.ErrValidation, "", "section",
			fmt.Sprintf("unknown section type %q", value), nil)
	}
}

// Section is one narration unit handed to the engine: an already-rendered
// audio file with its position metadata. The engine corrects its level but
// never edits its content.
type Section struct {
	Type   SectionType
	Title  string
	Source string
}

var chapterCaser = cases.Title(language.English)

// DisplayTitle returns the chapter label for the section: the provided
// title when set, otherwise a generated one from the section's type and
// ordinal among sections of that type.
func (s Section) DisplayTitle(ordinal int) string {
	if title := strings.TrimSpace(s.Title); title != "" {
		return title
	}
	switch s.Type {
	case SectionTopic:
		return fmt.Sprintf("%s %d", chapterCaser.String(s.Type.String()), ordinal)
	default:
		return chapterCaser.String(s.Type.String())
	}
}

// ValidateOrder enforces the fixed total order: an optional intro first,
// then topics, then synthesis sections. The order is taken from the input
// as given; this only rejects inputs that violate the shape.
func ValidateOrder(sections []Section) error {
	if len(sections) == 0 {
		return services.Wrap(services.ErrValidation, "", "sections", "empty section list", nil)
	}
	highest := SectionIntro
	for i, section := range sections {
		if section.Source == "" {
			return services.Wrap(services.ErrValidation, "", "sections",
				fmt.Sprintf("section %d has no source path", i), nil)
		}
		switch section.Type {
		case SectionIntro:
			if i != 0 {
				return services.Wrap(services.ErrValidation, "", "sections",
					"intro must be the first section", nil)
			}
		case SectionTopic, SectionSynthesis:
			if section.Type < highest {
				return services.Wrap(services.ErrValidation, "", "sections",
					fmt.Sprintf("section %d (%s) out of order", i, section.Type), nil)
			}
		default:
			return services.Wrap(services.ErrValidation, "", "sections",
				fmt.Sprintf("section %d has invalid type", i), nil)
		}
		if section.Type > highest {
			highest = section.Type
		}
	}
	return nil
}
