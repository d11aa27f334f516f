// Package config loads engine settings from HCL files.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/sirupsen/logrus"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/ref"
	"golang.org/x/text/language"
)

type Config struct {
	Engine    Engine
	Grid      Grid
	Log       Log
	Constants formula.Env
}

type Engine struct {
	Locale          language.Tag
	MaxTransactions int
	CoalesceWindow  time.Duration
}

// Grid holds the shape and sizes of newly created grids.
type Grid struct {
	Rows      int
	Cols      int
	RowHeight float64
	ColWidth  float64
}

type Log struct {
	Level  string
	Format string
}

func Default() *Config {
	return &Config{
		Engine: Engine{
			Locale:          language.AmericanEnglish,
			MaxTransactions: 500,
		},
		Grid: Grid{
			Rows:      100,
			Cols:      26,
			RowHeight: 25,
			ColWidth:  100,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Constants: formula.Env{},
	}
}

// fileRoot is the top-level shape of a config file.
type fileRoot struct {
	Engine    *hclEngine     `hcl:"engine,block"`
	Grid      *hclGrid       `hcl:"grid,block"`
	Log       *hclLog        `hcl:"log,block"`
	Constants hcl.Expression `hcl:"constants,optional"`
}

type hclEngine struct {
	Locale          *string `hcl:"locale,optional"`
	MaxTransactions *int    `hcl:"max_transactions,optional"`
	CoalesceWindow  *string `hcl:"coalesce_window,optional"`
}

type hclGrid struct {
	Rows      *int     `hcl:"rows,optional"`
	Cols      *int     `hcl:"cols,optional"`
	RowHeight *float64 `hcl:"row_height,optional"`
	ColWidth  *float64 `hcl:"col_width,optional"`
}

type hclLog struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

// Load parses the HCL file at path on top of the defaults.
func Load(path string) (*Config, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	return decode(file, path)
}

// Parse parses HCL source on top of the defaults. filename is only used in
// diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}
	return decode(file, filename)
}

func decode(file *hcl.File, filename string) (*Config, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}

	cfg := Default()
	if e := root.Engine; e != nil {
		if e.Locale != nil {
			tag, err := language.Parse(*e.Locale)
			if err != nil {
				return nil, fmt.Errorf("engine.locale %q: %w", *e.Locale, err)
			}
			cfg.Engine.Locale = tag
		}
		if e.MaxTransactions != nil {
			cfg.Engine.MaxTransactions = *e.MaxTransactions
		}
		if e.CoalesceWindow != nil {
			d, err := time.ParseDuration(*e.CoalesceWindow)
			if err != nil {
				return nil, fmt.Errorf("engine.coalesce_window %q: %w", *e.CoalesceWindow, err)
			}
			cfg.Engine.CoalesceWindow = d
		}
	}
	if g := root.Grid; g != nil {
		setIf(&cfg.Grid.Rows, g.Rows)
		setIf(&cfg.Grid.Cols, g.Cols)
		setIf(&cfg.Grid.RowHeight, g.RowHeight)
		setIf(&cfg.Grid.ColWidth, g.ColWidth)
	}
	if l := root.Log; l != nil {
		setIf(&cfg.Log.Level, l.Level)
		setIf(&cfg.Log.Format, l.Format)
	}
	if root.Constants != nil {
		constants, err := decodeConstants(root.Constants)
		if err != nil {
			return nil, err
		}
		cfg.Constants = constants
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case c.Engine.MaxTransactions < 0:
		return fmt.Errorf("engine.max_transactions must not be negative, got %d", c.Engine.MaxTransactions)
	case c.Engine.CoalesceWindow < 0:
		return fmt.Errorf("engine.coalesce_window must not be negative, got %s", c.Engine.CoalesceWindow)
	case c.Grid.Rows < 1 || c.Grid.Rows > ref.MaxRows:
		return fmt.Errorf("grid.rows must be between 1 and %d, got %d", ref.MaxRows, c.Grid.Rows)
	case c.Grid.Cols < 1 || c.Grid.Cols > ref.MaxCols:
		return fmt.Errorf("grid.cols must be between 1 and %d, got %d", ref.MaxCols, c.Grid.Cols)
	case c.Grid.RowHeight <= 0 || c.Grid.ColWidth <= 0:
		return fmt.Errorf("grid.row_height and grid.col_width must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}
	for name := range c.Constants {
		if !ref.IsPlainGridName(name) {
			return fmt.Errorf("constant name %q is not an identifier", name)
		}
		if r, err := ref.Parse(name); err == nil && r.Kind() == ref.KindCell {
			return fmt.Errorf("constant name %q looks like a cell reference", name)
		}
	}
	return nil
}
