package requirement

import (
	_ "embed"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names a requirement list encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatXML  Format = "xml"
)

//go:embed default.yaml
var defaultList []byte

// Source materializes an ordered requirement list.
type Source interface {
	Load() ([]Requirement, error)
}

// FileSource reads a list from disk. The format follows the extension:
// .xml is the legacy installer layout, anything else is YAML.
type FileSource struct {
	Path string
}

func (s FileSource) Load() ([]Requirement, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read requirements %s: %w", s.Path, err)
	}
	list, err := Parse(data, FormatFromPath(s.Path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return list, nil
}

// BytesSource parses an in-memory list.
type BytesSource struct {
	Data   []byte
	Format Format
}

func (s BytesSource) Load() ([]Requirement, error) {
	return Parse(s.Data, s.Format)
}

// DefaultSource returns the checklist bundled with the installer.
func DefaultSource() Source {
	return BytesSource{Data: defaultList, Format: FormatYAML}
}

// DefaultList returns the raw bundled checklist.
func DefaultList() []byte {
	out := make([]byte, len(defaultList))
	copy(out, defaultList)
	return out
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return FormatXML
	}
	return FormatYAML
}

// yamlDocument is the top-level shape of a YAML list.
type yamlDocument struct {
	Requirements []Requirement `yaml:"requirements"`
}

// xmlDocument mirrors <requirements><requirement>...</requirement></requirements>.
type xmlDocument struct {
	XMLName      xml.Name         `xml:"requirements"`
	Requirements []xmlRequirement `xml:"requirement"`
}

type xmlRequirement struct {
	Name         string `xml:"name"`
	Required     string `xml:"required"`
	WeakRequired string `xml:"weakRequired"`
	HasNotice    string `xml:"hasNotice"`
}

// Parse decodes a requirement list, preserving order.
func Parse(data []byte, format Format) ([]Requirement, error) {
	switch format {
	case FormatXML:
		var doc xmlDocument
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse requirements: %w", err)
		}
		list := make([]Requirement, 0, len(doc.Requirements))
		for _, r := range doc.Requirements {
			list = append(list, Requirement{
				Name:         strings.TrimSpace(r.Name),
				Required:     strings.TrimSpace(r.Required),
				WeakRequired: isTrueText(r.WeakRequired),
				HasNotice:    strings.TrimSpace(r.HasNotice),
			})
		}
		return list, nil
	case FormatYAML, "":
		var doc yamlDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse requirements: %w", err)
		}
		if doc.Requirements == nil {
			return nil, fmt.Errorf("parse requirements: missing requirements key")
		}
		return doc.Requirements, nil
	default:
		return nil, fmt.Errorf("unsupported requirements format %q", format)
	}
}

func isTrueText(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}
