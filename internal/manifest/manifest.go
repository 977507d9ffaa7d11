package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"mixdown/internal/assembly"
	"mixdown/internal/config"
	"mixdown/internal/services"
)

// SectionEntry is one [[section]] block of an episode manifest.
type SectionEntry struct {
	Type  string `toml:"type"`
	Title string `toml:"title"`
	Path  string `toml:"path"`
}

// MusicOverride optionally replaces the configured bed assets for one
// episode. Empty fields keep the engine configuration.
type MusicOverride struct {
	IntroBed      string `toml:"intro_bed"`
	TransitionBed string `toml:"transition_bed"`
	OutroBed      string `toml:"outro_bed"`
}

// Manifest describes one episode to assemble: its title, the ordered
// sections, the output file, and optional per-episode music overrides.
type Manifest struct {
	Title    string         `toml:"title"`
	Output   string         `toml:"output"`
	Sections []SectionEntry `toml:"section"`
	Music    MusicOverride  `toml:"music"`
}

// Load reads and validates an episode manifest. Relative audio paths are
// resolved against the manifest's own directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "manifest", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "manifest",
			fmt.Sprintf("parse %s", path), err)
	}
	if len(m.Sections) == 0 {
		return nil, services.Wrap(services.ErrValidation, "", "manifest",
			fmt.Sprintf("%s declares no sections", path), nil)
	}

	base := filepath.Dir(path)
	for i := range m.Sections {
		if strings.TrimSpace(m.Sections[i].Path) == "" {
			return nil, services.Wrap(services.ErrValidation, "", "manifest",
				fmt.Sprintf("section %d has no path", i), nil)
		}
		m.Sections[i].Path = resolve(base, m.Sections[i].Path)
	}
	m.Music.IntroBed = resolve(base, m.Music.IntroBed)
	m.Music.TransitionBed = resolve(base, m.Music.TransitionBed)
	m.Music.OutroBed = resolve(base, m.Music.OutroBed)
	if m.Output != "" {
		m.Output = resolve(base, m.Output)
	}
	return &m, nil
}

// AssemblySections converts the manifest entries into engine sections,
// validating each type and the overall order.
func (m *Manifest) AssemblySections() ([]assembly.Section, error) {
	sections := make([]assembly.Section, len(m.Sections))
	for i, entry := range m.Sections {
		sectionType, err := assembly.ParseSectionType(entry.Type)
		if err != nil {
			return nil, err
		}
		sections[i] = assembly.Section{
			Type:   sectionType,
			Title:  strings.TrimSpace(entry.Title),
			Source: entry.Path,
		}
	}
	if err := assembly.ValidateOrder(sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// ApplyMusic overlays the manifest's music overrides onto the engine
// configuration for this run.
func (m *Manifest) ApplyMusic(cfg *config.Config) {
	if m.Music.IntroBed != "" {
		cfg.Music.IntroBed = m.Music.IntroBed
	}
	if m.Music.TransitionBed != "" {
		cfg.Music.TransitionBed = m.Music.TransitionBed
	}
	if m.Music.OutroBed != "" {
		cfg.Music.OutroBed = m.Music.OutroBed
	}
}

func resolve(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
