package smt

// ==================== 常量折叠 ====================

// Simplify 对项做常量折叠, 返回语义等价的项
// 不做任何启发式改写, 只折叠字面量; 折叠是确定性的,
// 地面(无符号)公式会被完全求值成布尔字面量
func Simplify(t *Term) *Term {
	if t == nil {
		return nil
	}

	switch t.Kind {
	case TermSymbol, TermLit, TermBoolLit:
		return t

	case TermApply:
		args, changed := simplifyArgs(t.Args)
		if !changed {
			return t
		}
		return &Term{Kind: TermApply, Name: t.Name, Args: args, sort: t.sort}

	case TermNot:
		arg := Simplify(t.Args[0])
		if arg.Kind == TermBoolLit {
			return BoolLit(!arg.Bool)
		}
		// 双重否定消去
		if arg.Kind == TermNot {
			return arg.Args[0]
		}
		if arg == t.Args[0] {
			return t
		}
		return Not(arg)

	case TermAnd:
		args, changed := simplifyArgs(t.Args)
		kept := make([]*Term, 0, len(args))
		for _, a := range args {
			if a.Kind == TermBoolLit {
				if !a.Bool {
					return False()
				}
				changed = true // true参数被吸收
				continue
			}
			kept = append(kept, a)
		}
		if !changed {
			return t
		}
		return And(kept...)

	case TermOr:
		args, changed := simplifyArgs(t.Args)
		kept := make([]*Term, 0, len(args))
		for _, a := range args {
			if a.Kind == TermBoolLit {
				if a.Bool {
					return True()
				}
				changed = true // false参数被吸收
				continue
			}
			kept = append(kept, a)
		}
		if !changed {
			return t
		}
		return Or(kept...)

	case TermImplies:
		lhs := Simplify(t.Args[0])
		rhs := Simplify(t.Args[1])
		if lhs.Kind == TermBoolLit {
			if !lhs.Bool {
				return True() // 前件为假
			}
			return rhs
		}
		if rhs.Kind == TermBoolLit && rhs.Bool {
			return True() // 后件为真
		}
		if lhs == t.Args[0] && rhs == t.Args[1] {
			return t
		}
		return Implies(lhs, rhs)

	case TermEq:
		lhs := Simplify(t.Args[0])
		rhs := Simplify(t.Args[1])
		if folded, ok := foldEq(lhs, rhs); ok {
			return folded
		}
		if lhs == t.Args[0] && rhs == t.Args[1] {
			return t
		}
		return Eq(lhs, rhs)

	case TermDistinct:
		args, changed := simplifyArgs(t.Args)
		if allLiterals(args) {
			for i := 0; i < len(args); i++ {
				for j := i + 1; j < len(args); j++ {
					if literalsEqual(args[i], args[j]) {
						return False()
					}
				}
			}
			return True()
		}
		if !changed {
			return t
		}
		return Distinct(args...)

	case TermBVAnd:
		lhs := Simplify(t.Args[0])
		rhs := Simplify(t.Args[1])
		if lhs.Kind == TermLit && rhs.Kind == TermLit {
			return Lit(lhs.BV&rhs.BV, lhs.sort.Bits)
		}
		if lhs == t.Args[0] && rhs == t.Args[1] {
			return t
		}
		return BVAnd(lhs, rhs)

	default:
		return t
	}
}

// simplifyArgs 逐个化简子项, 报告是否有任何变化
func simplifyArgs(args []*Term) ([]*Term, bool) {
	out := make([]*Term, len(args))
	changed := false
	for i, a := range args {
		out[i] = Simplify(a)
		if out[i] != a {
			changed = true
		}
	}
	if !changed {
		return args, false
	}
	return out, true
}

// foldEq 双字面量等式折叠
func foldEq(lhs, rhs *Term) (*Term, bool) {
	if lhs.Kind == TermBoolLit && rhs.Kind == TermBoolLit {
		return BoolLit(lhs.Bool == rhs.Bool), true
	}
	if lhs.Kind == TermLit && rhs.Kind == TermLit && lhs.sort.Equal(rhs.sort) {
		return BoolLit(lhs.BV == rhs.BV), true
	}
	return nil, false
}

// allLiterals 判断是否全部为字面量
func allLiterals(args []*Term) bool {
	for _, a := range args {
		if a.Kind != TermLit && a.Kind != TermBoolLit {
			return false
		}
	}
	return true
}

// literalsEqual 两个字面量是否相等
func literalsEqual(a, b *Term) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == TermBoolLit {
		return a.Bool == b.Bool
	}
	return a.sort.Equal(b.sort) && a.BV == b.BV
}
