// +build z3

package smt

import (
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/aclements/go-z3/z3"
)

// Z3Oracle 基于Z3的可满足性oracle
// 每个会话持有独立的Z3上下文, 会话之间不共享任何求解器状态
type Z3Oracle struct {
	config *OracleConfig
	z3cfg  *z3.Config
	ctx    *z3.Context
	solver *z3.Solver

	decls   *Decls
	symbols map[string]z3.Value
	funcs   map[string]z3.FuncDecl

	lastResult Result
	solved     bool
	closed     bool
	stats      OracleStats
}

var _ Oracle = (*Z3Oracle)(nil)

// NewZ3Oracle 创建Z3求解会话
func NewZ3Oracle(config *OracleConfig) (*Z3Oracle, error) {
	if config == nil {
		config = DefaultOracleConfig()
	}
	config.MergeWithDefaults()

	// 超时作为oracle层资源限制下发给Z3 (毫秒)
	z3cfg := z3.NewContextConfig()
	timeout := config.GetSolverTimeoutDuration()
	z3cfg.SetUint("timeout", uint(timeout.Milliseconds()))

	ctx := z3.NewContext(z3cfg)

	return &Z3Oracle{
		config:  config,
		z3cfg:   z3cfg,
		ctx:     ctx,
		solver:  z3.NewSolver(ctx),
		decls:   NewDecls(),
		symbols: make(map[string]z3.Value),
		funcs:   make(map[string]z3.FuncDecl),
	}, nil
}

// Close 关闭会话
// Z3上下文由运行时回收, 这里只做状态标记, 关闭后的调用全部拒绝
func (zo *Z3Oracle) Close() error {
	zo.closed = true
	zo.solver = nil
	zo.symbols = nil
	zo.funcs = nil
	return nil
}

// DeclareSymbol 声明符号并创建对应的Z3常量
func (zo *Z3Oracle) DeclareSymbol(name string, sort Sort) error {
	if zo.closed {
		return ErrClosed
	}
	if err := zo.decls.DeclareSymbol(name, sort); err != nil {
		return err
	}

	switch sort.Kind {
	case SortBool:
		zo.symbols[name] = zo.ctx.BoolConst(name)
	case SortBitVec:
		zo.symbols[name] = zo.ctx.BVConst(name, sort.Bits)
	}
	return nil
}

// DeclareFunction 声明未解释函数并创建对应的Z3函数声明
// 函数的确定性(同输入同输出)由Z3的函数语义保证
func (zo *Z3Oracle) DeclareFunction(fn *FuncRef) error {
	if zo.closed {
		return ErrClosed
	}
	if err := zo.decls.DeclareFunction(fn); err != nil {
		return err
	}

	domain := make([]z3.Sort, len(fn.Domain))
	for i, s := range fn.Domain {
		domain[i] = zo.toZ3Sort(s)
	}
	zo.funcs[fn.Name] = zo.ctx.FuncDecl(fn.Name, domain, zo.toZ3Sort(fn.Range))
	return nil
}

// Assert 校验并断言一个布尔项
func (zo *Z3Oracle) Assert(t *Term) error {
	if zo.closed {
		return ErrClosed
	}
	if err := zo.decls.Validate(t); err != nil {
		return err
	}
	if t.Sort().Kind != SortBool {
		return fmt.Errorf("%w: asserted term has sort %s, want Bool", ErrInvalidFormula, t.Sort())
	}

	cache := make(map[*Term]z3.Value)
	zo.solver.Assert(zo.convert(t, cache).(z3.Bool))
	return nil
}

// CheckSat 判定当前断言集合的可满足性
func (zo *Z3Oracle) CheckSat() (Result, error) {
	if zo.closed {
		return ResultUnknown, ErrClosed
	}

	startTime := time.Now()
	sat, err := zo.solver.Check()
	elapsed := time.Since(startTime)

	zo.stats.TotalQueries++
	zo.stats.TotalSolveTime += elapsed
	zo.stats.LastSolveTime = elapsed
	zo.solved = true

	if err != nil {
		// Z3返回unknown (超时或资源耗尽); 结论未定
		zo.stats.UnknownCount++
		zo.lastResult = ResultUnknown
		return ResultUnknown, fmt.Errorf("%w: %v", ErrInconclusive, err)
	}

	if sat {
		zo.stats.SatCount++
		zo.lastResult = ResultSat
	} else {
		zo.stats.UnsatCount++
		zo.lastResult = ResultUnsat
	}

	if zo.config.Verbose {
		log.Printf("[Oracle] check-sat: %s (%v)", zo.lastResult, elapsed)
	}
	return zo.lastResult, nil
}

// Model 取回sat结论的模型, 包含每个已声明符号的具体赋值
func (zo *Z3Oracle) Model() (*Model, error) {
	if zo.closed {
		return nil, ErrClosed
	}
	if !zo.solved || zo.lastResult != ResultSat {
		return nil, ErrNoModel
	}

	m := zo.solver.Model()
	if m == nil {
		return nil, ErrNoModel
	}

	out := NewModel()
	for _, name := range zo.decls.SymbolNames() {
		sort, _ := zo.decls.SymbolSort(name)
		// completion=true: 未被约束触及的符号也取一个具体值
		evaluated := m.Eval(zo.symbols[name], true)
		v, err := parseZ3Value(evaluated, sort)
		if err != nil {
			return nil, fmt.Errorf("failed to read model value for %s: %w", name, err)
		}
		out.Set(name, v)
	}
	return out, nil
}

// GetStatistics 获取统计信息
func (zo *Z3Oracle) GetStatistics() OracleStats {
	return zo.stats
}

// ==================== 内部转换 ====================

// toZ3Sort 把内部类别映射到Z3类别
func (zo *Z3Oracle) toZ3Sort(s Sort) z3.Sort {
	if s.Kind == SortBool {
		return zo.ctx.BoolSort()
	}
	return zo.ctx.BVSort(s.Bits)
}

// convert 递归把项转换成Z3值, cache按节点指针去重
func (zo *Z3Oracle) convert(t *Term, cache map[*Term]z3.Value) z3.Value {
	if v, ok := cache[t]; ok {
		return v
	}

	var result z3.Value
	switch t.Kind {
	case TermSymbol:
		result = zo.symbols[t.Name]

	case TermLit:
		value := new(big.Int).SetUint64(t.BV)
		result = zo.ctx.FromBigInt(value, zo.ctx.BVSort(t.Sort().Bits))

	case TermBoolLit:
		result = zo.ctx.FromBool(t.Bool)

	case TermApply:
		fd := zo.funcs[t.Name]
		args := make([]z3.Value, len(t.Args))
		for i, a := range t.Args {
			args[i] = zo.convert(a, cache)
		}
		result = fd.Apply(args...)

	case TermNot:
		result = zo.convert(t.Args[0], cache).(z3.Bool).Not()

	case TermAnd:
		res := zo.convert(t.Args[0], cache).(z3.Bool)
		for i := 1; i < len(t.Args); i++ {
			res = res.And(zo.convert(t.Args[i], cache).(z3.Bool))
		}
		result = res

	case TermOr:
		res := zo.convert(t.Args[0], cache).(z3.Bool)
		for i := 1; i < len(t.Args); i++ {
			res = res.Or(zo.convert(t.Args[i], cache).(z3.Bool))
		}
		result = res

	case TermImplies:
		lhs := zo.convert(t.Args[0], cache).(z3.Bool)
		rhs := zo.convert(t.Args[1], cache).(z3.Bool)
		result = lhs.Implies(rhs)

	case TermEq:
		result = zo.convertEq(t.Args[0], t.Args[1], cache)

	case TermDistinct:
		// distinct降级为两两不等的合取
		var res z3.Bool
		first := true
		for i := 0; i < len(t.Args); i++ {
			for j := i + 1; j < len(t.Args); j++ {
				ne := zo.convertEq(t.Args[i], t.Args[j], cache).Not()
				if first {
					res = ne
					first = false
				} else {
					res = res.And(ne)
				}
			}
		}
		result = res

	case TermBVAnd:
		lhs := zo.convert(t.Args[0], cache).(z3.BV)
		rhs := zo.convert(t.Args[1], cache).(z3.BV)
		result = lhs.And(rhs)

	default:
		// Assert前已完成校验, 不应到达
		panic(fmt.Sprintf("unsupported term kind: %s", t.Kind))
	}

	cache[t] = result
	return result
}

// convertEq 按类别生成等式
func (zo *Z3Oracle) convertEq(a, b *Term, cache map[*Term]z3.Value) z3.Bool {
	if a.Sort().Kind == SortBool {
		return zo.convert(a, cache).(z3.Bool).Eq(zo.convert(b, cache).(z3.Bool))
	}
	return zo.convert(a, cache).(z3.BV).Eq(zo.convert(b, cache).(z3.BV))
}

// parseZ3Value 解析Z3打印的具体值
// Z3返回的格式可能是 "#xHEX"/"#bBIN"/十进制, 布尔为 "true"/"false"
func parseZ3Value(v z3.Value, sort Sort) (Value, error) {
	str := v.String()

	if sort.Kind == SortBool {
		switch str {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		default:
			return Value{}, fmt.Errorf("unexpected boolean model value: %q", str)
		}
	}

	result := new(big.Int)
	var ok bool
	if strings.HasPrefix(str, "#x") {
		_, ok = result.SetString(str[2:], 16)
	} else if strings.HasPrefix(str, "#b") {
		_, ok = result.SetString(str[2:], 2)
	} else {
		_, ok = result.SetString(str, 10)
	}
	if !ok {
		return Value{}, fmt.Errorf("unparseable model value: %q", str)
	}
	if !result.IsUint64() {
		return Value{}, fmt.Errorf("model value out of range: %q", str)
	}
	return BVValue(result.Uint64(), sort.Bits), nil
}
