package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type PrintSize struct {
	Name        string  `json:"name" yaml:"name"`
	AspectRatio float64 `json:"aspect_ratio" yaml:"aspect_ratio"`
	// NeedResize marks full-bleed prints that must be cropped to the exact ratio.
	NeedResize bool `json:"need_resize" yaml:"need_resize"`
}

type SizeCatalog struct {
	Sizes []PrintSize `json:"sizes" yaml:"sizes"`
}

func DefaultSizes() *SizeCatalog {
	return &SizeCatalog{Sizes: []PrintSize{
		{Name: "3寸-满版", AspectRatio: 5.0 / 7, NeedResize: true},
		{Name: "3寸-留白", AspectRatio: 5.0 / 7},
		{Name: "3寸-拍立得", AspectRatio: 64 / 55.4, NeedResize: true},
		{Name: "4寸-满版", AspectRatio: 3.0 / 4, NeedResize: true},
		{Name: "4寸-留白", AspectRatio: 3.0 / 4},
		{Name: "5寸-满版", AspectRatio: 7.0 / 10, NeedResize: true},
		{Name: "5寸-留白", AspectRatio: 7.0 / 10},
		{Name: "6寸-满版", AspectRatio: 2.0 / 3, NeedResize: true},
		{Name: "6寸-留白", AspectRatio: 2.0 / 3},
		{Name: "7寸-满版", AspectRatio: 5.0 / 7, NeedResize: true},
		{Name: "7寸-留白", AspectRatio: 5.0 / 7},
		{Name: "8寸-满版", AspectRatio: 3.0 / 4, NeedResize: true},
		{Name: "8寸-留白", AspectRatio: 3.0 / 4},
		{Name: "10寸-满版", AspectRatio: 4.0 / 5, NeedResize: true},
		{Name: "10寸-留白", AspectRatio: 4.0 / 5},
		{Name: "12寸-满版", AspectRatio: 1 / 1.414, NeedResize: true},
		{Name: "12寸-留白", AspectRatio: 1 / 1.414},
	}}
}

// LoadSizes reads a YAML catalog. An empty path returns the built-in catalog.
func LoadSizes(path string) (*SizeCatalog, error) {
	if path == "" {
		return DefaultSizes(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sizes file: %w", err)
	}
	var catalog SizeCatalog
	if err := yaml.Unmarshal(b, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse sizes file %s: %w", path, err)
	}
	if len(catalog.Sizes) == 0 {
		return nil, fmt.Errorf("sizes file %s defines no sizes", path)
	}
	for _, s := range catalog.Sizes {
		if s.Name == "" || s.AspectRatio <= 0 {
			return nil, fmt.Errorf("invalid size %q with aspect ratio %g", s.Name, s.AspectRatio)
		}
	}
	return &catalog, nil
}

func (c *SizeCatalog) Lookup(name string) (PrintSize, bool) {
	for _, s := range c.Sizes {
		if s.Name == name {
			return s, true
		}
	}
	return PrintSize{}, false
}

// AspectFor returns the aspect ratio of the named size, or 1 when unknown.
func (c *SizeCatalog) AspectFor(name string) float64 {
	if s, ok := c.Lookup(name); ok {
		return s.AspectRatio
	}
	return 1
}

func (c *SizeCatalog) Names() []string {
	names := make([]string, 0, len(c.Sizes))
	for _, s := range c.Sizes {
		names = append(names, s.Name)
	}
	return names
}
