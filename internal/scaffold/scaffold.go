// Package scaffold creates a new EPUB book project on disk.
package scaffold

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Yates-Labs/folio/internal/config"
	"github.com/Yates-Labs/folio/internal/logging"
	"github.com/Yates-Labs/folio/internal/validate"
)

//go:embed templates/*
var templateFS embed.FS

// DefaultProjectName is used when Options.ProjectName is empty.
const DefaultProjectName = "ACISS-Hairstyling-Book"

// Mimetype is the exact content of an EPUB's mimetype file.
const Mimetype = "application/epub+zip"

// Directories are created under the project root.
var Directories = []string{
	"META-INF",
	"OEBPS/text",
	"OEBPS/styles",
	"OEBPS/images",
	"OEBPS/fonts",
	"scripts",
	"data/chapters",
	"data/front_matter",
	"data/back_matter",
	"config",
	"templates",
	"output",
	"logs",
}

// Options configure Init.
type Options struct {
	// Dir is the project root; it is created if missing.
	Dir         string
	ProjectName string

	// Force overwrites files that already exist.
	Force bool

	Log *zap.Logger
}

// Result lists what Init wrote, relative to the project root.
type Result struct {
	Root    string
	Written []string
	Skipped []string
}

// ProjectFile is the layout of config/project.yaml.
type ProjectFile struct {
	Project struct {
		Name        string `yaml:"name"`
		Title       string `yaml:"title"`
		Author      string `yaml:"author"`
		Language    string `yaml:"language"`
		Description string `yaml:"description"`
	} `yaml:"project"`
	Structure struct {
		Chapters         int `yaml:"chapters"`
		FrontMatterFiles int `yaml:"front_matter_files"`
		BackMatterFiles  int `yaml:"back_matter_files"`
		PagesPerChapter  int `yaml:"pages_per_chapter"`
	} `yaml:"structure"`
	Output struct {
		Filename  string `yaml:"filename"`
		Directory string `yaml:"directory"`
		Validate  bool   `yaml:"validate"`
	} `yaml:"output"`
	QualityStandards struct {
		EPUBVersion   string `yaml:"epub_version"`
		XHTMLVersion  string `yaml:"xhtml_version"`
		Accessibility string `yaml:"accessibility"`
	} `yaml:"quality_standards"`
}

// NewProjectFile returns the project metadata for a new book.
func NewProjectFile(name string) ProjectFile {
	var p ProjectFile
	p.Project.Name = name
	p.Project.Title = "ACISS - Advanced Certification in Sustainable Styling"
	p.Project.Author = "Professional Hairstyling Institute"
	p.Project.Language = "en"
	p.Project.Description = "Professional certification course in sustainable hairstyling practices"
	p.Structure.Chapters = 16
	p.Structure.FrontMatterFiles = 8
	p.Structure.BackMatterFiles = 17
	p.Structure.PagesPerChapter = 6
	p.Output.Filename = name + ".epub"
	p.Output.Directory = "output"
	p.Output.Validate = true
	p.QualityStandards.EPUBVersion = "3.0"
	p.QualityStandards.XHTMLVersion = "1.1"
	p.QualityStandards.Accessibility = "WCAG-AA"
	return p
}

// file renders one project file.
type file struct {
	path   string
	render func() ([]byte, error)
}

// Init lays out a project tree with configuration, a sample chapter and the
// stylesheet. Existing files are kept unless opts.Force is set.
func Init(opts Options) (*Result, error) {
	if opts.Dir == "" {
		return nil, errors.New("project directory is required")
	}
	if opts.ProjectName == "" {
		opts.ProjectName = DefaultProjectName
	}
	log := logging.OrNop(opts.Log)

	for _, d := range Directories {
		if err := os.MkdirAll(filepath.Join(opts.Dir, d), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Provider = config.ProviderAnthropic
	cfg.Model = config.DefaultModel(config.ProviderAnthropic)
	cfg.Project.Name = opts.ProjectName

	files := []file{
		{"mimetype", func() ([]byte, error) { return []byte(Mimetype), nil }},
		{"META-INF/container.xml", embedded("container.xml")},
		{"config/agents.yaml", cfg.Marshal},
		{"config/project.yaml", func() ([]byte, error) { return yaml.Marshal(NewProjectFile(opts.ProjectName)) }},
		{"config/aciss_style_guide.yaml", func() ([]byte, error) { return validate.DefaultStyleGuide().Marshal() }},
		{"data/chapters/chapter-xiii.yaml", embedded("chapter-xiii.yaml")},
		{"OEBPS/styles/aciss.css", embedded("aciss.css")},
		{".env.template", embedded("env.template")},
		{"README.md", readme(opts.ProjectName)},
	}

	res := &Result{Root: opts.Dir}
	for _, f := range files {
		target := filepath.Join(opts.Dir, f.path)
		if !opts.Force {
			if _, err := os.Stat(target); err == nil {
				log.Debug("keeping existing file", zap.String("path", f.path))
				res.Skipped = append(res.Skipped, f.path)
				continue
			}
		}

		data, err := f.render()
		if err != nil {
			return res, fmt.Errorf("failed to render %s: %w", f.path, err)
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return res, fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		res.Written = append(res.Written, f.path)
	}

	log.Info("project initialized",
		zap.String("root", opts.Dir),
		zap.Int("written", len(res.Written)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

func embedded(name string) func() ([]byte, error) {
	return func() ([]byte, error) {
		return fs.ReadFile(templateFS, "templates/"+name)
	}
}

func readme(name string) func() ([]byte, error) {
	return func() ([]byte, error) {
		tmpl, err := template.ParseFS(templateFS, "templates/README.md")
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, struct{ Name string }{name}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}
