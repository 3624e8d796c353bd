package smt

import (
	"fmt"
	"strings"
	"time"
)

// ==================== 类型系统 ====================

// SortKind 类别枚举
type SortKind int

const (
	SortBool   SortKind = iota // 布尔
	SortBitVec                 // 定宽位向量
)

// Sort 项的类别 (布尔或定宽位向量)
type Sort struct {
	Kind SortKind `json:"kind"`
	Bits int      `json:"bits,omitempty"` // 仅 SortBitVec 有效
}

// BoolSort 返回布尔类别
func BoolSort() Sort {
	return Sort{Kind: SortBool}
}

// BitVecSort 返回宽度为bits的位向量类别
func BitVecSort(bits int) Sort {
	return Sort{Kind: SortBitVec, Bits: bits}
}

// Equal 判断两个类别是否一致
func (s Sort) Equal(o Sort) bool {
	return s.Kind == o.Kind && s.Bits == o.Bits
}

// Valid 校验类别参数; 位向量宽度限制在 [1, 64]
func (s Sort) Valid() error {
	switch s.Kind {
	case SortBool:
		return nil
	case SortBitVec:
		if s.Bits < 1 || s.Bits > 64 {
			return fmt.Errorf("bitvec width must be in [1, 64], got %d", s.Bits)
		}
		return nil
	default:
		return fmt.Errorf("unknown sort kind: %d", s.Kind)
	}
}

// String 返回类别的字符串表示
func (s Sort) String() string {
	if s.Kind == SortBool {
		return "Bool"
	}
	return fmt.Sprintf("BitVec(%d)", s.Bits)
}

// ==================== 未解释函数 ====================

// FuncRef 未解释全函数的声明
// 同一输入必然得到同一输出由求解器的函数语义保证, 不需要手工断言
type FuncRef struct {
	Name   string `json:"name"`
	Domain []Sort `json:"domain"`
	Range  Sort   `json:"range"`
}

// NewFuncRef 创建一元函数声明 (本模型中全部翻译/权限函数均为一元)
func NewFuncRef(name string, domain Sort, rng Sort) *FuncRef {
	return &FuncRef{Name: name, Domain: []Sort{domain}, Range: rng}
}

// ==================== 项 ====================

// TermKind 项类型枚举
type TermKind int

const (
	TermSymbol   TermKind = iota // 已声明符号的引用
	TermLit                      // 位向量字面量
	TermBoolLit                  // 布尔字面量
	TermApply                    // 未解释函数应用
	TermNot                      // 逻辑非
	TermAnd                      // 逻辑与
	TermOr                       // 逻辑或
	TermImplies                  // 蕴含
	TermEq                       // 等于
	TermDistinct                 // 两两互异
	TermBVAnd                    // 按位与 (页对齐掩码)
)

// String 返回项类型的字符串表示
func (tk TermKind) String() string {
	names := []string{
		"SYMBOL", "LIT", "BOOL_LIT", "APPLY",
		"NOT", "AND", "OR", "IMPLIES", "EQ", "DISTINCT", "BVAND",
	}
	if int(tk) < len(names) {
		return names[tk]
	}
	return "UNKNOWN"
}

// Term 不可变的公式树节点
// 构造函数只做局部类别推导, 完整校验在断言时由 Decls.Validate 完成
type Term struct {
	Kind TermKind
	Name string // TermSymbol: 符号名; TermApply: 函数名
	BV   uint64 // TermLit 的值
	Bool bool   // TermBoolLit 的值
	Args []*Term

	sort Sort
}

// Sort 返回项的类别
func (t *Term) Sort() Sort {
	return t.sort
}

// ==================== 项构造函数 ====================

// Symbol 引用一个已声明(或待声明)的符号
func Symbol(name string, sort Sort) *Term {
	return &Term{Kind: TermSymbol, Name: name, sort: sort}
}

// Lit 位向量字面量
func Lit(value uint64, width int) *Term {
	return &Term{Kind: TermLit, BV: value, sort: BitVecSort(width)}
}

// BoolLit 布尔字面量
func BoolLit(value bool) *Term {
	return &Term{Kind: TermBoolLit, Bool: value, sort: BoolSort()}
}

// True 布尔真
func True() *Term {
	return BoolLit(true)
}

// False 布尔假
func False() *Term {
	return BoolLit(false)
}

// Apply 未解释函数应用
func Apply(fn *FuncRef, args ...*Term) *Term {
	return &Term{Kind: TermApply, Name: fn.Name, Args: args, sort: fn.Range}
}

// Not 逻辑非
func Not(t *Term) *Term {
	return &Term{Kind: TermNot, Args: []*Term{t}, sort: BoolSort()}
}

// And 逻辑与; 零参返回true, 单参直接返回该参
func And(ts ...*Term) *Term {
	if len(ts) == 0 {
		return True()
	}
	if len(ts) == 1 {
		return ts[0]
	}
	return &Term{Kind: TermAnd, Args: ts, sort: BoolSort()}
}

// Or 逻辑或; 零参返回false, 单参直接返回该参
func Or(ts ...*Term) *Term {
	if len(ts) == 0 {
		return False()
	}
	if len(ts) == 1 {
		return ts[0]
	}
	return &Term{Kind: TermOr, Args: ts, sort: BoolSort()}
}

// Implies 蕴含 a => b
func Implies(a, b *Term) *Term {
	return &Term{Kind: TermImplies, Args: []*Term{a, b}, sort: BoolSort()}
}

// Eq 等于
func Eq(a, b *Term) *Term {
	return &Term{Kind: TermEq, Args: []*Term{a, b}, sort: BoolSort()}
}

// Distinct 所有参数两两互异
func Distinct(ts ...*Term) *Term {
	return &Term{Kind: TermDistinct, Args: ts, sort: BoolSort()}
}

// BVAnd 按位与, 结果宽度与左操作数一致
func BVAnd(a, b *Term) *Term {
	return &Term{Kind: TermBVAnd, Args: []*Term{a, b}, sort: a.sort}
}

// ==================== 项打印 ====================

// String 以s表达式形式打印项, 供日志/转储/测试使用
// 输出是确定性的: 同一棵树总是得到同一字符串
func (t *Term) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TermSymbol:
		return t.Name
	case TermLit:
		return fmt.Sprintf("0x%x", t.BV)
	case TermBoolLit:
		if t.Bool {
			return "true"
		}
		return "false"
	case TermApply:
		return t.sexpr(t.Name)
	case TermNot:
		return t.sexpr("not")
	case TermAnd:
		return t.sexpr("and")
	case TermOr:
		return t.sexpr("or")
	case TermImplies:
		return t.sexpr("=>")
	case TermEq:
		return t.sexpr("=")
	case TermDistinct:
		return t.sexpr("distinct")
	case TermBVAnd:
		return t.sexpr("bvand")
	default:
		return "<invalid>"
	}
}

func (t *Term) sexpr(op string) string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(op)
	for _, a := range t.Args {
		sb.WriteString(" ")
		sb.WriteString(a.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// ==================== 求解结果 ====================

// Result 可满足性判定结果
type Result int

const (
	ResultUnknown Result = iota // 未知 (超时/资源耗尽), 绝不等同于unsat
	ResultSat                   // 可满足
	ResultUnsat                 // 不可满足
)

// String 返回结果的小写字符串表示, 与命令行输出格式一致
func (r Result) String() string {
	names := []string{"unknown", "sat", "unsat"}
	if int(r) < len(names) {
		return names[r]
	}
	return "invalid"
}

// ==================== Oracle配置 ====================

// OracleConfig 求解会话配置
// 超时属于oracle层的资源限制, 核心编码不感知
type OracleConfig struct {
	SolverTimeout string `yaml:"solver_timeout" json:"solver_timeout"` // 超时时间字符串 "30s"
	Verbose       bool   `yaml:"verbose" json:"verbose"`               // 是否打印求解日志
}

// DefaultOracleConfig 返回默认配置
// 所有默认值集中在此处,不在使用处硬编码
func DefaultOracleConfig() *OracleConfig {
	return &OracleConfig{
		SolverTimeout: "30s",
		Verbose:       false,
	}
}

// MergeWithDefaults 合并用户配置与默认配置
func (oc *OracleConfig) MergeWithDefaults() {
	defaults := DefaultOracleConfig()

	if oc.SolverTimeout == "" {
		oc.SolverTimeout = defaults.SolverTimeout
	}
}

// GetSolverTimeoutDuration 解析超时时间字符串
func (oc *OracleConfig) GetSolverTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(oc.SolverTimeout)
	if err != nil {
		return 30 * time.Second // 默认30秒
	}
	return d
}
