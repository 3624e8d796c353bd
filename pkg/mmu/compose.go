package mmu

import (
	"fmt"

	"wxvisor/pkg/smt"
)

// ==================== 组合权限求值 ====================

// Level 一次查表: 在某级权限表中以某地址取限制标记
// 嵌套翻译下, 第一级以VA查guest表, 第二级以mmu1(VA)查hypervisor表
type Level struct {
	Table *PermTable
	Addr  Addr
}

// EffectiveRestriction 多级遍历后的有效限制标记: 各级限制标记的析取
// 任何一级限制即整体限制 ("最小权限胜出"), 等价于各级授权的合取;
// 把这里写成限制的合取 (即授权的析取) 会让宽松的一级掩盖严格的一级,
// 是本系统必须抓住的关键错误
func EffectiveRestriction(access Access, levels ...Level) (*smt.Term, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: effective restriction needs at least one level", ErrConfig)
	}

	bits := make([]*smt.Term, len(levels))
	for i, lv := range levels {
		bit, err := lv.Table.Restricts(lv.Addr, access)
		if err != nil {
			return nil, err
		}
		bits[i] = bit
	}
	return smt.Or(bits...), nil
}

// EffectiveGrant 多级遍历后的有效授权: 没有任何一级限制该访问
func EffectiveGrant(access Access, levels ...Level) (*smt.Term, error) {
	restricted, err := EffectiveRestriction(access, levels...)
	if err != nil {
		return nil, err
	}
	return smt.Not(restricted), nil
}

// CompositionLaw 物理权限与各级页表权限的联结律:
//
//	phys.bit(pa) == or(各级.bit)
//
// 对别名集合的每个成员都要实例化一次, 使同一物理页经任何别名
// 到达时得到同一有效权限
func CompositionLaw(access Access, phys *PermTable, pa Addr, levels ...Level) (*smt.Term, error) {
	physBit, err := phys.Restricts(pa, access)
	if err != nil {
		return nil, err
	}
	composed, err := EffectiveRestriction(access, levels...)
	if err != nil {
		return nil, err
	}
	return smt.Eq(physBit, composed), nil
}

// WriteXorExecute 物理页的W^X性质: 只读标记与禁执行标记互异
// 即任何物理页恰好限制写与执行之一, 不存在可写又可执行的页
func WriteXorExecute(phys *PermTable, pa Addr) (*smt.Term, error) {
	ro, err := phys.ReadOnly(pa)
	if err != nil {
		return nil, err
	}
	nx, err := phys.NoExecute(pa)
	if err != nil {
		return nil, err
	}
	return smt.Distinct(ro, nx), nil
}

// GrantRequires 访问意图成立时最后一级页表必须与物理权限一致且放行:
//
//	flag => (last.bit == phys.bit(pa) ∧ last.bit == false)
//
// write对应ro位, execute对应nx位
func GrantRequires(flag *smt.Term, access Access, phys *PermTable, pa Addr, last Level) (*smt.Term, error) {
	lastBit, err := last.Table.Restricts(last.Addr, access)
	if err != nil {
		return nil, err
	}
	physBit, err := phys.Restricts(pa, access)
	if err != nil {
		return nil, err
	}
	return smt.Implies(flag, smt.And(
		smt.Eq(lastBit, physBit),
		smt.Eq(lastBit, smt.False()),
	)), nil
}
