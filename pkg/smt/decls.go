package smt

import (
	"fmt"
)

// ==================== 声明注册表 ====================

// Decls 单次查询的符号与函数声明注册表
// 记录声明顺序, 保证向oracle下发与模型打印的顺序可复现
type Decls struct {
	symbolOrder []string
	symbols     map[string]Sort
	funcOrder   []string
	funcs       map[string]*FuncRef
}

// NewDecls 创建空的声明注册表
func NewDecls() *Decls {
	return &Decls{
		symbols: make(map[string]Sort),
		funcs:   make(map[string]*FuncRef),
	}
}

// DeclareSymbol 声明一个符号
// 重名(含与函数重名)直接拒绝, 同一查询内命名空间唯一
func (d *Decls) DeclareSymbol(name string, sort Sort) error {
	if name == "" {
		return fmt.Errorf("%w: empty symbol name", ErrInvalidFormula)
	}
	if err := sort.Valid(); err != nil {
		return fmt.Errorf("%w: symbol %s: %v", ErrInvalidFormula, name, err)
	}
	if _, exists := d.symbols[name]; exists {
		return fmt.Errorf("%w: symbol %s already declared", ErrInvalidFormula, name)
	}
	if _, exists := d.funcs[name]; exists {
		return fmt.Errorf("%w: name %s already declared as function", ErrInvalidFormula, name)
	}

	d.symbols[name] = sort
	d.symbolOrder = append(d.symbolOrder, name)
	return nil
}

// DeclareFunction 声明一个未解释函数
func (d *Decls) DeclareFunction(fn *FuncRef) error {
	if fn == nil || fn.Name == "" {
		return fmt.Errorf("%w: empty function declaration", ErrInvalidFormula)
	}
	if len(fn.Domain) == 0 {
		return fmt.Errorf("%w: function %s has empty domain", ErrInvalidFormula, fn.Name)
	}
	for _, s := range fn.Domain {
		if err := s.Valid(); err != nil {
			return fmt.Errorf("%w: function %s: %v", ErrInvalidFormula, fn.Name, err)
		}
	}
	if err := fn.Range.Valid(); err != nil {
		return fmt.Errorf("%w: function %s: %v", ErrInvalidFormula, fn.Name, err)
	}
	if _, exists := d.funcs[fn.Name]; exists {
		return fmt.Errorf("%w: function %s already declared", ErrInvalidFormula, fn.Name)
	}
	if _, exists := d.symbols[fn.Name]; exists {
		return fmt.Errorf("%w: name %s already declared as symbol", ErrInvalidFormula, fn.Name)
	}

	d.funcs[fn.Name] = fn
	d.funcOrder = append(d.funcOrder, fn.Name)
	return nil
}

// SymbolNames 按声明顺序返回所有符号名
func (d *Decls) SymbolNames() []string {
	return d.symbolOrder
}

// SymbolSort 查询符号的类别
func (d *Decls) SymbolSort(name string) (Sort, bool) {
	s, ok := d.symbols[name]
	return s, ok
}

// FuncNames 按声明顺序返回所有函数名
func (d *Decls) FuncNames() []string {
	return d.funcOrder
}

// Func 查询函数声明
func (d *Decls) Func(name string) (*FuncRef, bool) {
	fn, ok := d.funcs[name]
	return fn, ok
}

// ==================== 断言时校验 ====================

// Validate 递归校验项: 引用的符号/函数必须已声明, 类别必须匹配
// 引用未声明句柄或类别不匹配属于配置错误, 在断言时拒绝
func (d *Decls) Validate(t *Term) error {
	if t == nil {
		return fmt.Errorf("%w: nil term", ErrInvalidFormula)
	}

	switch t.Kind {
	case TermSymbol:
		declared, ok := d.symbols[t.Name]
		if !ok {
			return fmt.Errorf("%w: symbol %s not declared", ErrInvalidFormula, t.Name)
		}
		if !declared.Equal(t.sort) {
			return fmt.Errorf("%w: symbol %s used as %s but declared as %s",
				ErrInvalidFormula, t.Name, t.sort, declared)
		}
		return nil

	case TermLit:
		if err := t.sort.Valid(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFormula, err)
		}
		if t.sort.Bits < 64 && t.BV>>uint(t.sort.Bits) != 0 {
			return fmt.Errorf("%w: literal 0x%x does not fit in %d bits",
				ErrInvalidFormula, t.BV, t.sort.Bits)
		}
		return nil

	case TermBoolLit:
		return nil

	case TermApply:
		fn, ok := d.funcs[t.Name]
		if !ok {
			return fmt.Errorf("%w: function %s not declared", ErrInvalidFormula, t.Name)
		}
		if len(t.Args) != len(fn.Domain) {
			return fmt.Errorf("%w: function %s expects %d args, got %d",
				ErrInvalidFormula, t.Name, len(fn.Domain), len(t.Args))
		}
		for i, arg := range t.Args {
			if err := d.Validate(arg); err != nil {
				return err
			}
			if !arg.Sort().Equal(fn.Domain[i]) {
				return fmt.Errorf("%w: function %s arg %d has sort %s, want %s",
					ErrInvalidFormula, t.Name, i, arg.Sort(), fn.Domain[i])
			}
		}
		return nil

	case TermNot:
		return d.validateBoolArgs(t, 1, 1)

	case TermAnd, TermOr:
		return d.validateBoolArgs(t, 2, -1)

	case TermImplies:
		return d.validateBoolArgs(t, 2, 2)

	case TermEq:
		if len(t.Args) != 2 {
			return fmt.Errorf("%w: eq expects 2 args, got %d", ErrInvalidFormula, len(t.Args))
		}
		return d.validateSameSort(t)

	case TermDistinct:
		if len(t.Args) < 2 {
			return fmt.Errorf("%w: distinct expects at least 2 args, got %d",
				ErrInvalidFormula, len(t.Args))
		}
		return d.validateSameSort(t)

	case TermBVAnd:
		if len(t.Args) != 2 {
			return fmt.Errorf("%w: bvand expects 2 args, got %d", ErrInvalidFormula, len(t.Args))
		}
		for _, arg := range t.Args {
			if err := d.Validate(arg); err != nil {
				return err
			}
			if arg.Sort().Kind != SortBitVec {
				return fmt.Errorf("%w: bvand arg has sort %s, want bitvec",
					ErrInvalidFormula, arg.Sort())
			}
		}
		if !t.Args[0].Sort().Equal(t.Args[1].Sort()) {
			return fmt.Errorf("%w: bvand width mismatch: %s vs %s",
				ErrInvalidFormula, t.Args[0].Sort(), t.Args[1].Sort())
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown term kind %d", ErrInvalidFormula, t.Kind)
	}
}

// validateBoolArgs 校验参数个数在[min,max]内且全部为布尔 (max<0表示不限)
func (d *Decls) validateBoolArgs(t *Term, min, max int) error {
	if len(t.Args) < min || (max >= 0 && len(t.Args) > max) {
		return fmt.Errorf("%w: %s has %d args", ErrInvalidFormula, t.Kind, len(t.Args))
	}
	for _, arg := range t.Args {
		if err := d.Validate(arg); err != nil {
			return err
		}
		if arg.Sort().Kind != SortBool {
			return fmt.Errorf("%w: %s arg has sort %s, want Bool",
				ErrInvalidFormula, t.Kind, arg.Sort())
		}
	}
	return nil
}

// validateSameSort 校验所有参数类别一致
func (d *Decls) validateSameSort(t *Term) error {
	var first Sort
	for i, arg := range t.Args {
		if err := d.Validate(arg); err != nil {
			return err
		}
		if i == 0 {
			first = arg.Sort()
			continue
		}
		if !arg.Sort().Equal(first) {
			return fmt.Errorf("%w: %s arg sorts differ: %s vs %s",
				ErrInvalidFormula, t.Kind, first, arg.Sort())
		}
	}
	return nil
}
