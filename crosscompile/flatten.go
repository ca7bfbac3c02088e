package crosscompile

import (
	"fmt"

	"github.com/gogpu/naga/ir"
	"github.com/gogpu/shaderchain/reflection"
)

// flattenBlock replaces the block global h with one unbound uniform per
// struct member and points every member access at the new globals. The
// returned map is keyed by the new global names.
func flattenBlock(m *ir.Module, h ir.GlobalVariableHandle, block Block) (map[string]FlatUniform, error) {
	g := m.GlobalVariables[h]
	s, ok := m.Types[g.Type].Inner.(ir.StructType)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrFlatten, g.Name)
	}
	prefix := FlatUBOPrefix
	if block == BlockPush {
		prefix = FlatPushPrefix
	}

	flat := make([]ir.GlobalVariableHandle, len(s.Members))
	names := make(map[string]FlatUniform, len(s.Members))
	for i, mem := range s.Members {
		name := prefix + mem.Name
		shape, _ := reflection.ShapeOf(m.Types[mem.Type].Inner)
		flat[i] = ir.GlobalVariableHandle(len(m.GlobalVariables))
		m.GlobalVariables = append(m.GlobalVariables, ir.GlobalVariable{
			Name:  name,
			Space: ir.SpaceUniform,
			Type:  mem.Type,
		})
		names[name] = FlatUniform{Block: block, Member: mem.Name, Offset: mem.Offset, Shape: shape}
	}

	rewrite := func(fn *ir.Function) error {
		for i := range fn.Expressions {
			switch k := fn.Expressions[i].Kind.(type) {
			case ir.ExprAccessIndex:
				base, ok := reflection.ResolveGlobal(fn, k.Base)
				if !ok || base != h {
					continue
				}
				if int(k.Index) >= len(flat) {
					return fmt.Errorf("%w: %s has no member %d", ErrFlatten, g.Name, k.Index)
				}
				fn.Expressions[i].Kind = ir.ExprGlobalVariable{Variable: flat[k.Index]}
				setResolution(fn, i, ir.TypeResolution{
					Value: ir.PointerType{Base: s.Members[k.Index].Type, Space: ir.SpaceUniform},
				})
			case ir.ExprAccess:
				if base, ok := reflection.ResolveGlobal(fn, k.Base); ok && base == h {
					return fmt.Errorf("%w: %s is indexed dynamically", ErrFlatten, g.Name)
				}
			case ir.ExprLoad:
				if base, ok := reflection.ResolveGlobal(fn, k.Pointer); ok && base == h {
					return fmt.Errorf("%w: %s is loaded as a whole", ErrFlatten, g.Name)
				}
			}
		}

		var callErr error
		reflection.WalkBlock(fn.Body, func(st ir.StatementKind) {
			call, ok := st.(ir.StmtCall)
			if !ok || callErr != nil {
				return
			}
			for _, arg := range call.Arguments {
				if base, ok := reflection.ResolveGlobal(fn, arg); ok && base == h {
					callErr = fmt.Errorf("%w: %s is passed to a function", ErrFlatten, g.Name)
				}
			}
		})
		if callErr != nil {
			return callErr
		}

		// Whatever still names the block is now unused. Turning it into a
		// literal keeps the old global out of the emitted declarations.
		for i := range fn.Expressions {
			if k, ok := fn.Expressions[i].Kind.(ir.ExprGlobalVariable); ok && k.Variable == h {
				fn.Expressions[i].Kind = ir.Literal{Value: ir.LiteralU32(0)}
				setResolution(fn, i, ir.TypeResolution{Value: ir.ScalarType{Kind: ir.ScalarUint, Width: 4}})
			}
		}
		return nil
	}

	for i := range m.Functions {
		if err := rewrite(&m.Functions[i]); err != nil {
			return nil, err
		}
	}
	for i := range m.EntryPoints {
		if err := rewrite(&m.EntryPoints[i].Function); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func setResolution(fn *ir.Function, i int, res ir.TypeResolution) {
	if i < len(fn.ExpressionTypes) {
		fn.ExpressionTypes[i] = res
	}
}
