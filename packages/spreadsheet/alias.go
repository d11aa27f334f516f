package spreadsheet

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/ref"
)

// aliasTable maps alias names to grid-qualified references. Cells that use a
// name, defined or not, are tracked by the dependency graph so defining it
// later recomputes them.
type aliasTable struct {
	targets map[string]ref.Reference
}

func newAliasTable() *aliasTable {
	return &aliasTable{targets: make(map[string]ref.Reference)}
}

func (at *aliasTable) get(name string) (ref.Reference, bool) {
	r, ok := at.targets[name]
	return r, ok
}

func (at *aliasTable) define(name string, target ref.Reference) {
	at.targets[name] = target
}

func (at *aliasTable) undefine(name string) bool {
	if _, ok := at.targets[name]; !ok {
		return false
	}
	delete(at.targets, name)
	return true
}

// names returns every defined alias, sorted.
func (at *aliasTable) names() []string {
	return slices.Sorted(maps.Keys(at.targets))
}

// validateAliasName rejects names the formula lexer would not read back as
// a plain identifier.
func validateAliasName(name string) error {
	if !ref.IsPlainGridName(name) {
		return fmt.Errorf("alias name %q is not an identifier", name)
	}
	if _, ok := referenceOf(name); ok {
		return fmt.Errorf("alias name %q looks like a cell reference", name)
	}
	upper := strings.ToUpper(name)
	if upper == "TRUE" || upper == "FALSE" || formula.IsBuiltin(upper) {
		return fmt.Errorf("alias name %q is reserved", name)
	}
	return nil
}

// referenceOf parses text the way the formula lexer classifies references:
// a cell or a ':' range, optionally grid-qualified. Lone rows and columns are
// identifiers inside programs.
func referenceOf(text string) (ref.Reference, bool) {
	r, err := ref.Parse(text)
	if err != nil {
		return nil, false
	}
	if r.Kind() != ref.KindCell && !strings.Contains(text, ":") {
		return nil, false
	}
	return r, true
}

// SetAlias binds name to target. An unqualified target is qualified with
// the current grid.
func (p *Project) SetAlias(name, target string) error {
	if err := validateAliasName(name); err != nil {
		return appErrorf(InvalidArgument, err, "cannot set alias")
	}
	r, err := ref.Parse(target)
	if err != nil {
		return appErrorf(InvalidArgument, err, "cannot set alias %s", name)
	}
	if r.GridName() == "" {
		r = r.WithGrid(p.CurrentGrid().name)
	}
	if _, ok := p.grids.get(r.GridName()); !ok {
		return appErrorf(NotFound, nil, "grid %q does not exist", r.GridName())
	}
	return p.mutate(func() error {
		p.setAlias(name, r)
		return nil
	})
}

// RemoveAlias deletes an alias. Formulas using it evaluate to #NAME?.
func (p *Project) RemoveAlias(name string) error {
	if _, ok := p.aliases.get(name); !ok {
		return appErrorf(NotFound, nil, "alias %q does not exist", name)
	}
	return p.mutate(func() error {
		p.setAlias(name, nil)
		return nil
	})
}

// RenameAlias renames an alias and every formula that uses it.
func (p *Project) RenameAlias(oldName, newName string) error {
	target, ok := p.aliases.get(oldName)
	if !ok {
		return appErrorf(NotFound, nil, "alias %q does not exist", oldName)
	}
	if err := validateAliasName(newName); err != nil {
		return appErrorf(InvalidArgument, err, "cannot rename alias %s", oldName)
	}
	if _, exists := p.aliases.get(newName); exists {
		return appErrorf(AlreadyExists, nil, "alias %q already exists", newName)
	}
	return p.mutate(func() error {
		p.setAlias(newName, target)
		p.setAlias(oldName, nil)
		p.replaceIdentifier(oldName, newName)
		return nil
	})
}

// Alias returns the grid-qualified target of name.
func (p *Project) Alias(name string) (ref.Reference, bool) {
	return p.aliases.get(name)
}

// Aliases returns every alias with its target rendered as text.
func (p *Project) Aliases() map[string]string {
	out := make(map[string]string, len(p.aliases.targets))
	for name, target := range p.aliases.targets {
		out[name] = target.String()
	}
	return out
}

// setAlias defines, redefines or (with a nil target) removes an alias and
// records the change.
func (p *Project) setAlias(name string, target ref.Reference) {
	var oldText, newText string
	if old, ok := p.aliases.get(name); ok {
		oldText = old.String()
	}
	if target != nil {
		newText = target.String()
		p.aliases.define(name, target)
	} else {
		p.aliases.undefine(name)
	}
	if oldText == newText {
		return
	}
	p.graph.markAliasDirty(name)
	p.record(Event{Type: EventAliasChanged, Name: name, Old: oldText, New: newText})
}

// setAliasText is the replay form of setAlias.
func (p *Project) setAliasText(name, target string) error {
	if target == "" {
		p.setAlias(name, nil)
		return nil
	}
	r, err := ref.Parse(target)
	if err != nil {
		return err
	}
	p.setAlias(name, r)
	return nil
}

// replaceIdentifier rewrites every use of an alias name in every formula.
func (p *Project) replaceIdentifier(name, replacement string) {
	p.rewriteIdentifiers(func(tok formula.Token) string {
		if tok.Type != formula.TokenRef && tok.Text == name {
			return replacement
		}
		return tok.Text
	})
}

// transformAliases moves alias targets in lockstep with a structural
// transformation. Aliases whose target was deleted are removed and returned.
func (p *Project) transformAliases(t Transformation) []string {
	var deleted []string
	for _, name := range p.aliases.names() {
		target, _ := p.aliases.get(name)
		out, gone, changed := t.apply(target, true)
		switch {
		case gone:
			p.setAlias(name, nil)
			deleted = append(deleted, name)
		case changed:
			p.setAlias(name, out)
		}
	}
	return deleted
}

// coerceDeletedAliases rewrites every use of a removed alias into an
// expression that fails with #REF!, once.
func (p *Project) coerceDeletedAliases(names []string) {
	for _, name := range names {
		p.replaceIdentifier(name, fmt.Sprintf("DELETED(%q)", name))
	}
}
