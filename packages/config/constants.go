package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/zclconf/go-cty/cty"
)

// decodeConstants evaluates the constants object. Numbers, strings and
// bools map to formula scalars; a tuple of scalars becomes a column and a
// tuple of tuples a matrix.
func decodeConstants(expr hcl.Expression) (formula.Env, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("constants: %w", diags)
	}
	env := formula.Env{}
	if val.IsNull() {
		return env, nil
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("constants must be an object, got %s", ty.FriendlyName())
	}
	for name, v := range val.AsValueMap() {
		p, err := toPrimitive(v)
		if err != nil {
			return nil, fmt.Errorf("constant %s: %w", name, err)
		}
		env[name] = p
	}
	return env, nil
}

func toPrimitive(v cty.Value) (formula.Primitive, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	ty := v.Type()
	switch {
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f, nil
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsTupleType() || ty.IsListType():
		return toArray(v)
	}
	return nil, fmt.Errorf("unsupported type %s", ty.FriendlyName())
}

func toArray(v cty.Value) (formula.Primitive, error) {
	var items []formula.Primitive
	nested := 0
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		p, err := toPrimitive(elem)
		if err != nil {
			return nil, err
		}
		if _, ok := p.(formula.Array); ok {
			nested++
		}
		items = append(items, p)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	if nested == 0 {
		return formula.Column(items...), nil
	}
	if nested != len(items) {
		return nil, fmt.Errorf("cannot mix lists and scalars")
	}
	out := make(formula.Array, len(items))
	for i, item := range items {
		for elem := range item.(formula.Array).Values() {
			out[i] = append(out[i], elem)
		}
		if len(out[i]) != len(out[0]) {
			return nil, fmt.Errorf("rows have different lengths")
		}
	}
	return out, nil
}
