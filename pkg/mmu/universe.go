package mmu

import (
	"errors"
	"fmt"

	"wxvisor/pkg/smt"
)

// ==================== 地址空间 ====================

// Space 地址空间枚举
type Space int

const (
	SpaceVA  Space = iota // 虚拟地址
	SpaceIPA              // 中间物理地址 (guest物理地址)
	SpacePA               // 物理地址
)

// String 返回地址空间的字符串表示
func (s Space) String() string {
	names := []string{"VA", "IPA", "PA"}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// ErrSpaceMismatch 地址空间不匹配: 把某个空间的地址喂给了另一空间的翻译/权限表
var ErrSpaceMismatch = errors.New("address space mismatch")

// ==================== 地址 ====================

// Addr 带空间标签的符号地址
// Term要么是已声明的符号, 要么是翻译函数应用得到的派生地址
type Addr struct {
	Term  *smt.Term
	Space Space
}

// String 返回地址项的s表达式
func (a Addr) String() string {
	return a.Term.String()
}

// ==================== 符号宇宙 ====================

// Universe 单次查询的符号命名空间
// 每个查询使用全新的Universe, 约束绝不跨查询泄漏
type Universe struct {
	cfg   *Config
	decls *smt.Decls
}

// NewUniverse 以给定配置创建新的符号宇宙
func NewUniverse(cfg *Config) (*Universe, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.MergeWithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Universe{
		cfg:   cfg,
		decls: smt.NewDecls(),
	}, nil
}

// Config 返回宇宙的配置
func (u *Universe) Config() *Config {
	return u.cfg
}

// Decls 返回声明注册表, 供查询引擎向oracle下发
func (u *Universe) Decls() *smt.Decls {
	return u.decls
}

// addrSort 地址符号的位向量类别
func (u *Universe) addrSort() smt.Sort {
	return smt.BitVecSort(u.cfg.AddressWidth)
}

// Address 声明一个地址符号
func (u *Universe) Address(name string, space Space) (Addr, error) {
	if err := u.decls.DeclareSymbol(name, u.addrSort()); err != nil {
		return Addr{}, err
	}
	return Addr{Term: smt.Symbol(name, u.addrSort()), Space: space}, nil
}

// Flag 声明一个布尔符号 (访问意图: write/execute)
func (u *Universe) Flag(name string) (*smt.Term, error) {
	if err := u.decls.DeclareSymbol(name, smt.BoolSort()); err != nil {
		return nil, err
	}
	return smt.Symbol(name, smt.BoolSort()), nil
}

// Aligned 页对齐约束: addr & pageMask == 0
func (u *Universe) Aligned(a Addr) *smt.Term {
	mask := smt.Lit(u.cfg.PageMask(), u.cfg.AddressWidth)
	zero := smt.Lit(0, u.cfg.AddressWidth)
	return smt.Eq(smt.BVAnd(a.Term, mask), zero)
}

// Pin 把地址钉到具体值: addr == value
// 同一地址钉两个不同的值不是错误, 公式整体unsat即是结论
func (u *Universe) Pin(a Addr, value uint64) (*smt.Term, error) {
	if value > u.cfg.MaxAddress() {
		return nil, fmt.Errorf("%w: pinned value 0x%x exceeds %d-bit address space",
			ErrConfig, value, u.cfg.AddressWidth)
	}
	return smt.Eq(a.Term, smt.Lit(value, u.cfg.AddressWidth)), nil
}
