package validate

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// StyleGuide is the design system generated files are checked against.
type StyleGuide struct {
	Name       string                       `yaml:"name"`
	Colors     map[string]string            `yaml:"colors"`
	Typography map[string]string            `yaml:"typography"`
	Components map[string]map[string]string `yaml:"components,omitempty"`
}

type styleGuideFile struct {
	DesignSystem StyleGuide `yaml:"design_system"`
}

// DefaultStyleGuide returns the built-in ACISS design system.
func DefaultStyleGuide() *StyleGuide {
	return &StyleGuide{
		Name: "ACISS",
		Colors: map[string]string{
			"primary":          "#1a1a1a",
			"accent":           "#1797a6",
			"border":           "#b2dfdb",
			"background_light": "#f9f9f9",
			"text_muted":       "#666",
		},
		Typography: map[string]string{
			"body":       "Libre Baskerville",
			"headings":   "Libre Baskerville",
			"decorative": "Cinzel Decorative",
			"sans_serif": "Montserrat",
		},
		Components: map[string]map[string]string{
			"roman_badge": {
				"background":    "linear-gradient(135deg, #1797a6, #26a69a)",
				"color":         "white",
				"size":          "6rem x 4rem",
				"border_radius": "2rem",
			},
			"bible_quote": {
				"background":    "#e0f2f1",
				"border":        "2px solid #1797a6",
				"border_radius": "10px",
				"padding":       "1rem 1.25rem",
			},
			"title_stack": {
				"font_family":  "Cinzel Decorative",
				"font_size":    "1.8rem",
				"color":        "#1797a6",
				"vertical_bar": "0.25rem width, #222 color",
			},
		},
	}
}

// LoadStyleGuide reads a style guide nested under `design_system:`. Keys the
// file leaves out fall back to the ACISS defaults.
func LoadStyleGuide(path string) (*StyleGuide, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style guide: %w", err)
	}

	var file styleGuideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse style guide %s: %w", path, err)
	}

	sg := DefaultStyleGuide()
	if file.DesignSystem.Name != "" {
		sg.Name = file.DesignSystem.Name
	}
	if len(file.DesignSystem.Colors) > 0 {
		sg.Colors = file.DesignSystem.Colors
	}
	if len(file.DesignSystem.Typography) > 0 {
		sg.Typography = file.DesignSystem.Typography
	}
	if len(file.DesignSystem.Components) > 0 {
		sg.Components = file.DesignSystem.Components
	}
	return sg, nil
}

// Marshal encodes the style guide in the layout LoadStyleGuide reads.
func (s *StyleGuide) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(styleGuideFile{DesignSystem: *s})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal style guide: %w", err)
	}
	return data, nil
}

// Fonts returns the distinct font families, sorted.
func (s *StyleGuide) Fonts() []string {
	seen := make(map[string]struct{})
	var fonts []string
	for _, f := range s.Typography {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		fonts = append(fonts, f)
	}
	sort.Strings(fonts)
	return fonts
}

// BrandColors returns the primary and accent colours that every stylesheet
// is expected to use.
func (s *StyleGuide) BrandColors() map[string]string {
	out := make(map[string]string, 2)
	for _, key := range []string{"primary", "accent"} {
		if c, ok := s.Colors[key]; ok && c != "" {
			out[key] = c
		}
	}
	return out
}
