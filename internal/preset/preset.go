// Package preset loads named spell-effect presets from YAML. A preset pairs a
// formula with its resolution method, a sample context and optional chain,
// critical and tick settings, so authors can preview an effect by ID.
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/spellforge/internal/effect"
	"github.com/cory-johannsen/spellforge/internal/formula"
	"github.com/cory-johannsen/spellforge/internal/resolution"
)

var (
	// ErrDuplicateID is returned when two presets share an ID.
	ErrDuplicateID = errors.New("preset: duplicate id")
	// ErrInvalid is returned for presets missing required fields.
	ErrInvalid = errors.New("preset: invalid")
)

// Def is a preset as written in YAML.
type Def struct {
	ID          string                 `yaml:"id"`
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Formula     string                 `yaml:"formula"`
	Method      string                 `yaml:"method"` // "dice" | "cards" | "coins"; empty = dice
	Context     map[string]float64     `yaml:"context"`
	Hand        string                 `yaml:"hand"`  // sample cards, e.g. "AH KS 7D"
	Flips       string                 `yaml:"flips"` // sample coins, e.g. "HHT"
	Chain       *effect.ChainParams    `yaml:"chain"`
	Critical    *effect.CriticalParams `yaml:"critical"`
	Ticks       *effect.TickParams     `yaml:"ticks"`
	Script      string                 `yaml:"script"` // Lua context hook name
}

// Preset is a validated Def with its formula parsed and its effect settings
// resolved against defaults.
type Preset struct {
	Def
	Expr    formula.Expression
	Method  resolution.Method
	Context formula.Context

	// Nil when the preset does not configure the effect.
	Chain    *effect.ChainConfig
	Critical *effect.CriticalConfig
	Ticks    *effect.TickConfig

	// Source is the file the preset was loaded from; empty for presets built in code.
	Source string
}

// Compile validates def and resolves it against d.
//
// Postcondition: Returns a Preset whose formula parses and whose effect
// configs pass validation, or an error naming the preset.
func Compile(def Def, d effect.Defaults) (*Preset, error) {
	if strings.TrimSpace(def.ID) == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalid)
	}
	wrap := func(err error) error { return fmt.Errorf("preset %q: %w", def.ID, err) }
	if strings.TrimSpace(def.Formula) == "" {
		return nil, wrap(fmt.Errorf("%w: missing formula", ErrInvalid))
	}

	expr, err := formula.Parse(def.Formula)
	if err != nil {
		return nil, wrap(err)
	}
	method, err := resolution.ParseMethod(def.Method)
	if err != nil {
		return nil, wrap(err)
	}
	ctx, err := sampleContext(def, method)
	if err != nil {
		return nil, wrap(err)
	}

	p := &Preset{Def: def, Expr: expr, Method: method, Context: ctx}
	if def.Chain != nil {
		c, err := effect.NewChainConfig(*def.Chain, d)
		if err != nil {
			return nil, wrap(err)
		}
		p.Chain = &c
	}
	if def.Critical != nil {
		c, err := effect.NewCriticalConfig(*def.Critical, d)
		if err != nil {
			return nil, wrap(err)
		}
		p.Critical = &c
	}
	if def.Ticks != nil {
		c, err := effect.NewTickConfig(*def.Ticks, d)
		if err != nil {
			return nil, wrap(err)
		}
		p.Ticks = &c
	}
	return p, nil
}

// sampleContext merges the explicit context over the bindings derived from
// the sample hand or flips.
func sampleContext(def Def, method resolution.Method) (formula.Context, error) {
	var base formula.Context
	switch {
	case def.Hand != "" && def.Flips != "":
		return formula.Context{}, fmt.Errorf("%w: hand and flips are mutually exclusive", ErrInvalid)
	case def.Hand != "":
		if method != resolution.MethodCards {
			return formula.Context{}, fmt.Errorf("%w: hand requires method cards, got %s", ErrInvalid, method)
		}
		hand, err := resolution.ParseHand(def.Hand)
		if err != nil {
			return formula.Context{}, err
		}
		base = resolution.CardContext(hand)
	case def.Flips != "":
		if method != resolution.MethodCoins {
			return formula.Context{}, fmt.Errorf("%w: flips require method coins, got %s", ErrInvalid, method)
		}
		flips, err := resolution.ParseFlips(def.Flips)
		if err != nil {
			return formula.Context{}, err
		}
		base = resolution.CoinContext(flips)
	}
	return base.Merge(formula.ContextFromMap(def.Context)), nil
}

// Library holds presets keyed by ID.
type Library struct {
	presets map[string]*Preset
}

// NewLibrary creates an empty Library.
func NewLibrary() *Library {
	return &Library{presets: make(map[string]*Preset)}
}

// Add registers p.
//
// Precondition: p must be non-nil.
// Postcondition: Returns an error matching ErrDuplicateID if p.ID is taken.
func (l *Library) Add(p *Preset) error {
	if prev, ok := l.presets[p.ID]; ok {
		return fmt.Errorf("%w: %q in %s and %s", ErrDuplicateID, p.ID, describeSource(prev), describeSource(p))
	}
	l.presets[p.ID] = p
	return nil
}

func describeSource(p *Preset) string {
	if p.Source == "" {
		return "<code>"
	}
	return p.Source
}

// Get returns the preset with id.
func (l *Library) Get(id string) (*Preset, bool) {
	p, ok := l.presets[id]
	return p, ok
}

// All returns every preset ordered by ID.
func (l *Library) All() []*Preset {
	out := make([]*Preset, 0, len(l.presets))
	for _, p := range l.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of presets.
func (l *Library) Len() int { return len(l.presets) }

// LoadDirectory reads every *.yaml and *.yml file in dir. A file may hold
// several presets as separate YAML documents. Unknown fields are rejected.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Library, or the first error encountered.
func LoadDirectory(dir string, d effect.Defaults) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading preset dir %q: %w", dir, err)
	}
	lib := NewLibrary()
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		presets, err := Decode(data, d)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		for _, p := range presets {
			p.Source = path
			if err := lib.Add(p); err != nil {
				return nil, err
			}
		}
	}
	return lib, nil
}

// Decode parses and compiles every YAML document in data.
func Decode(data []byte, d effect.Defaults) ([]*Preset, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var out []*Preset
	for {
		var def Def
		err := dec.Decode(&def)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		p, err := Compile(def, d)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
}
