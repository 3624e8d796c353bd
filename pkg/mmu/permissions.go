package mmu

import (
	"fmt"

	"wxvisor/pkg/smt"
)

// ==================== 访问类型 ====================

// Access 访问类型枚举
type Access int

const (
	AccessRead    Access = iota // 读
	AccessWrite                 // 写 (受ro位限制)
	AccessExecute               // 执行 (受nx位限制)
)

// String 返回访问类型的字符串表示
func (a Access) String() string {
	names := []string{"read", "write", "execute"}
	if int(a) < len(names) {
		return names[a]
	}
	return "unknown"
}

// ==================== 权限表 ====================

// PermTable 某一地址空间上的权限标记表
// ro/nx是地址到布尔的未解释函数: 位被置上表示该访问被限制;
// 未被钉死的地址其权限位由求解器自由选择, 这正是"是否存在违反
// 策略的页表配置"这类存在性查询得以成立的原因
type PermTable struct {
	ro    *smt.FuncRef
	nx    *smt.FuncRef
	space Space
}

// Permissions 声明一组权限表 (ro与nx两个函数, 命名为 <name>_ro / <name>_nx)
func (u *Universe) Permissions(name string, space Space) (*PermTable, error) {
	ro := smt.NewFuncRef(name+"_ro", u.addrSort(), smt.BoolSort())
	nx := smt.NewFuncRef(name+"_nx", u.addrSort(), smt.BoolSort())

	if err := u.decls.DeclareFunction(ro); err != nil {
		return nil, err
	}
	if err := u.decls.DeclareFunction(nx); err != nil {
		return nil, err
	}
	return &PermTable{ro: ro, nx: nx, space: space}, nil
}

// Space 返回权限表所在的地址空间
func (p *PermTable) Space() Space {
	return p.space
}

// ReadOnly 只读标记查询项: <name>_ro(addr)
func (p *PermTable) ReadOnly(a Addr) (*smt.Term, error) {
	if a.Space != p.space {
		return nil, fmt.Errorf("%w: permission table %s indexed by %s, got %s address",
			ErrSpaceMismatch, p.ro.Name, p.space, a.Space)
	}
	return smt.Apply(p.ro, a.Term), nil
}

// NoExecute 禁执行标记查询项: <name>_nx(addr)
func (p *PermTable) NoExecute(a Addr) (*smt.Term, error) {
	if a.Space != p.space {
		return nil, fmt.Errorf("%w: permission table %s indexed by %s, got %s address",
			ErrSpaceMismatch, p.nx.Name, p.space, a.Space)
	}
	return smt.Apply(p.nx, a.Term), nil
}

// Restricts 给定访问类型对应的限制标记
// 本模型中读访问永不被限制, 返回布尔假
func (p *PermTable) Restricts(a Addr, access Access) (*smt.Term, error) {
	switch access {
	case AccessWrite:
		return p.ReadOnly(a)
	case AccessExecute:
		return p.NoExecute(a)
	case AccessRead:
		return smt.False(), nil
	default:
		return nil, fmt.Errorf("%w: unknown access kind %d", ErrConfig, access)
	}
}

// SetReadOnly 钉死某地址的只读位
func (p *PermTable) SetReadOnly(a Addr, value bool) (*smt.Term, error) {
	bit, err := p.ReadOnly(a)
	if err != nil {
		return nil, err
	}
	return smt.Eq(bit, smt.BoolLit(value)), nil
}

// SetNoExecute 钉死某地址的禁执行位
func (p *PermTable) SetNoExecute(a Addr, value bool) (*smt.Term, error) {
	bit, err := p.NoExecute(a)
	if err != nil {
		return nil, err
	}
	return smt.Eq(bit, smt.BoolLit(value)), nil
}
