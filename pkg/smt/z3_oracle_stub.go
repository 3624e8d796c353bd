// +build !z3

package smt

// Z3Oracle 基于Z3的可满足性oracle (stub版本 - Z3未启用)
type Z3Oracle struct {
	config *OracleConfig
	stats  OracleStats
}

var _ Oracle = (*Z3Oracle)(nil)

// NewZ3Oracle 创建Z3求解会话 (stub - 返回错误)
func NewZ3Oracle(config *OracleConfig) (*Z3Oracle, error) {
	return nil, wrapUnavailable()
}

// Close 关闭会话 (stub)
func (zo *Z3Oracle) Close() error {
	return nil
}

// DeclareSymbol 声明符号 (stub - 返回错误)
func (zo *Z3Oracle) DeclareSymbol(name string, sort Sort) error {
	return wrapUnavailable()
}

// DeclareFunction 声明未解释函数 (stub - 返回错误)
func (zo *Z3Oracle) DeclareFunction(fn *FuncRef) error {
	return wrapUnavailable()
}

// Assert 断言一个布尔项 (stub - 返回错误)
func (zo *Z3Oracle) Assert(t *Term) error {
	return wrapUnavailable()
}

// CheckSat 判定可满足性 (stub - 返回错误)
func (zo *Z3Oracle) CheckSat() (Result, error) {
	return ResultUnknown, wrapUnavailable()
}

// Model 取回模型 (stub - 返回错误)
func (zo *Z3Oracle) Model() (*Model, error) {
	return nil, wrapUnavailable()
}

// GetStatistics 获取统计信息 (stub)
func (zo *Z3Oracle) GetStatistics() OracleStats {
	return OracleStats{}
}
