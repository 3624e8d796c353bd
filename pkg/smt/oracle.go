package smt

import (
	"errors"
	"fmt"
	"time"
)

// ==================== 错误分类 ====================

var (
	// ErrUnavailable oracle后端在本构建中不可用 (致命错误)
	ErrUnavailable = errors.New("smt oracle not available")

	// ErrInconclusive 后端返回unknown; 结论未定, 绝不能当作unsat处理
	ErrInconclusive = errors.New("smt oracle inconclusive")

	// ErrNoModel 在得到sat结论之前请求模型
	ErrNoModel = errors.New("no model available")

	// ErrInvalidFormula 断言阶段的校验失败 (未声明句柄/类别不匹配等配置错误)
	ErrInvalidFormula = errors.New("invalid formula")

	// ErrClosed 会话已关闭
	ErrClosed = errors.New("oracle session closed")
)

// wrapUnavailable 统一的后端不可用错误
func wrapUnavailable() error {
	return fmt.Errorf("%w - rebuild with '-tags z3' to enable", ErrUnavailable)
}

// ==================== Oracle接口 ====================

// Oracle 可满足性判定接口
// 核心编码只依赖这五个操作, 不触及任何求解器内部
// 互相矛盾的断言不是错误: 查询只是unsat
type Oracle interface {
	// DeclareSymbol 声明符号
	DeclareSymbol(name string, sort Sort) error

	// DeclareFunction 声明未解释全函数
	DeclareFunction(fn *FuncRef) error

	// Assert 断言一个布尔项
	Assert(t *Term) error

	// CheckSat 判定当前断言集合的可满足性
	// 返回ResultUnknown时附带ErrInconclusive包装的原因
	CheckSat() (Result, error)

	// Model 返回sat结论对应的模型 (每个已声明符号的具体赋值)
	Model() (*Model, error)

	// Close 释放会话资源
	Close() error
}

// ==================== 模型与具体值 ====================

// Value 模型中单个符号的具体值
type Value struct {
	Sort Sort   `json:"sort"`
	BV   uint64 `json:"bv,omitempty"`
	Bool bool   `json:"bool,omitempty"`
}

// BVValue 构造位向量值
func BVValue(v uint64, width int) Value {
	return Value{Sort: BitVecSort(width), BV: v}
}

// BoolValue 构造布尔值
func BoolValue(b bool) Value {
	return Value{Sort: BoolSort(), Bool: b}
}

// String 返回具体值的可读形式: 地址打印为十六进制
func (v Value) String() string {
	if v.Sort.Kind == SortBool {
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return fmt.Sprintf("0x%x", v.BV)
}

// Model 一次sat结论的具体赋值
// 保留插入顺序, 证据打印顺序与符号声明顺序一致
type Model struct {
	order  []string
	values map[string]Value
}

// NewModel 创建空模型
func NewModel() *Model {
	return &Model{values: make(map[string]Value)}
}

// Set 记录一个符号的赋值 (重复Set覆盖旧值, 不改变顺序)
func (m *Model) Set(name string, v Value) {
	if _, exists := m.values[name]; !exists {
		m.order = append(m.order, name)
	}
	m.values[name] = v
}

// Value 查询符号的赋值
func (m *Model) Value(name string) (Value, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Names 按插入顺序返回所有符号名
func (m *Model) Names() []string {
	return m.order
}

// Len 返回模型中的赋值个数
func (m *Model) Len() int {
	return len(m.values)
}

// ==================== 统计 ====================

// OracleStats oracle会话统计
type OracleStats struct {
	TotalQueries   int
	SatCount       int
	UnsatCount     int
	UnknownCount   int
	TotalSolveTime time.Duration
	LastSolveTime  time.Duration
}
