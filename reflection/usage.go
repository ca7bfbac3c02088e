package reflection

import "github.com/gogpu/naga/ir"

// usage records which globals the functions reachable from one entry
// point touch, and which struct members of block globals they read.
type usage struct {
	globals map[ir.GlobalVariableHandle]bool
	members map[ir.GlobalVariableHandle]map[uint32]bool
	whole   map[ir.GlobalVariableHandle]bool
}

func (u *usage) memberActive(g ir.GlobalVariableHandle, idx uint32) bool {
	return u.whole[g] || u.members[g][idx]
}

// analyzeUsage walks the entry point and every function it calls.
func analyzeUsage(m *ir.Module, ep *ir.EntryPoint) *usage {
	u := &usage{
		globals: make(map[ir.GlobalVariableHandle]bool),
		members: make(map[ir.GlobalVariableHandle]map[uint32]bool),
		whole:   make(map[ir.GlobalVariableHandle]bool),
	}
	visited := make(map[ir.FunctionHandle]bool)
	var visit func(fn *ir.Function)
	visit = func(fn *ir.Function) {
		u.scanFunction(fn)
		for _, callee := range Callees(fn) {
			if visited[callee] || int(callee) >= len(m.Functions) {
				continue
			}
			visited[callee] = true
			visit(&m.Functions[callee])
		}
	}
	visit(&ep.Function)
	return u
}

func (u *usage) scanFunction(fn *ir.Function) {
	for _, e := range fn.Expressions {
		switch k := e.Kind.(type) {
		case ir.ExprGlobalVariable:
			u.globals[k.Variable] = true
		case ir.ExprAccessIndex:
			if g, ok := ResolveGlobal(fn, k.Base); ok {
				if u.members[g] == nil {
					u.members[g] = make(map[uint32]bool)
				}
				u.members[g][k.Index] = true
			}
		case ir.ExprAccess:
			if g, ok := ResolveGlobal(fn, k.Base); ok {
				u.whole[g] = true
			}
		case ir.ExprLoad:
			if g, ok := ResolveGlobal(fn, k.Pointer); ok {
				u.whole[g] = true
			}
		}
	}
	WalkBlock(fn.Body, func(s ir.StatementKind) {
		call, ok := s.(ir.StmtCall)
		if !ok {
			return
		}
		for _, arg := range call.Arguments {
			if g, ok := ResolveGlobal(fn, arg); ok {
				u.whole[g] = true
			}
		}
	})
}

// ResolveGlobal follows aliases from h and reports the global variable
// the expression names, if any.
func ResolveGlobal(fn *ir.Function, h ir.ExpressionHandle) (ir.GlobalVariableHandle, bool) {
	for steps := 0; steps < len(fn.Expressions); steps++ {
		if int(h) >= len(fn.Expressions) {
			return 0, false
		}
		switch k := fn.Expressions[h].Kind.(type) {
		case ir.ExprAlias:
			h = k.Source
		case ir.ExprGlobalVariable:
			return k.Variable, true
		default:
			return 0, false
		}
	}
	return 0, false
}

// Callees returns the functions fn calls, in first-call order.
func Callees(fn *ir.Function) []ir.FunctionHandle {
	var out []ir.FunctionHandle
	seen := make(map[ir.FunctionHandle]bool)
	add := func(h ir.FunctionHandle) {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	WalkBlock(fn.Body, func(s ir.StatementKind) {
		if call, ok := s.(ir.StmtCall); ok {
			add(call.Function)
		}
	})
	for _, e := range fn.Expressions {
		if r, ok := e.Kind.(ir.ExprCallResult); ok {
			add(r.Function)
		}
	}
	return out
}

// WalkBlock visits every statement of b, descending into nested blocks.
func WalkBlock(b ir.Block, visit func(ir.StatementKind)) {
	for _, s := range b {
		visit(s.Kind)
		switch k := s.Kind.(type) {
		case ir.StmtBlock:
			WalkBlock(k.Block, visit)
		case ir.StmtIf:
			WalkBlock(k.Accept, visit)
			WalkBlock(k.Reject, visit)
		case ir.StmtSwitch:
			for _, c := range k.Cases {
				WalkBlock(c.Body, visit)
			}
		case ir.StmtLoop:
			WalkBlock(k.Body, visit)
			WalkBlock(k.Continuing, visit)
		}
	}
}
