package scenario

import (
	"fmt"

	"wxvisor/pkg/mmu"
	"wxvisor/pkg/smt"
)

// ==================== 构建入口 ====================

// Build 构建选定场景的全部检查
// 四个场景共用一套编码骨架; 每个检查使用全新的符号宇宙,
// 同一场景构建两次得到结构完全相同的声明与断言 (编码是确定性的)
func Build(kind Kind, cfg *mmu.Config, params Params) (*Scenario, error) {
	if cfg == nil {
		cfg = mmu.DefaultConfig()
	}
	cfg.MergeWithDefaults()

	// 级数由场景决定
	c := *cfg
	if kind == NestedWXVisor {
		c.Stages = 2
	} else {
		c.Stages = 1
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var checks []*Check
	var err error
	switch kind {
	case BasicPaging:
		checks, err = buildBasicPaging(&c, params)
	case Aliasing:
		checks, err = buildAliasing(&c, params)
	case SingleLevelWX:
		checks, err = buildSingleLevelWX(&c, params)
	case NestedWXVisor:
		checks, err = buildNestedWXVisor(&c, params)
	default:
		err = fmt.Errorf("%w: unknown scenario kind %d", mmu.ErrConfig, kind)
	}
	if err != nil {
		return nil, err
	}

	return &Scenario{Kind: kind, Config: &c, Checks: checks}, nil
}

// constraintSet 约束收集器, 第一个错误短路后续构建
type constraintSet struct {
	terms []*smt.Term
	err   error
}

func (cs *constraintSet) add(t *smt.Term, err error) {
	if cs.err != nil {
		return
	}
	if err != nil {
		cs.err = err
		return
	}
	cs.terms = append(cs.terms, t)
}

func (cs *constraintSet) addAll(ts []*smt.Term, err error) {
	if cs.err != nil {
		return
	}
	if err != nil {
		cs.err = err
		return
	}
	cs.terms = append(cs.terms, ts...)
}

func (cs *constraintSet) addPlain(t *smt.Term) {
	cs.add(t, nil)
}

// finish 把收集到的约束装进查询
func (cs *constraintSet) finish(q *Query) error {
	if cs.err != nil {
		return cs.err
	}
	return q.Assert(cs.terms...)
}

// ==================== 单级编码骨架 ====================

// singleLevel 单级翻译的公共符号: mmu1直接把VA翻译到PA,
// stage1是页表权限, phy是物理权限
type singleLevel struct {
	u      *mmu.Universe
	va, pa mmu.Addr
	mmu1   *mmu.Translation
	stage1 *mmu.PermTable
	phy    *mmu.PermTable
	paOfVA mmu.Addr
	cs     constraintSet
}

// newSingleLevel 声明单级符号并铺好基础约束:
// 映射钉入, 页对齐, 参数地址钉入
func newSingleLevel(cfg *mmu.Config, params Params) (*singleLevel, error) {
	u, err := mmu.NewUniverse(cfg)
	if err != nil {
		return nil, err
	}

	s := &singleLevel{u: u}
	if s.va, err = u.Address("va", mmu.SpaceVA); err != nil {
		return nil, err
	}
	if s.pa, err = u.Address("pa", mmu.SpacePA); err != nil {
		return nil, err
	}
	if s.mmu1, err = u.Translation("mmu1", mmu.SpaceVA, mmu.SpacePA); err != nil {
		return nil, err
	}
	if s.stage1, err = u.Permissions("stage1", mmu.SpaceVA); err != nil {
		return nil, err
	}
	if s.phy, err = u.Permissions("phy", mmu.SpacePA); err != nil {
		return nil, err
	}
	if s.paOfVA, err = s.mmu1.At(s.va); err != nil {
		return nil, err
	}

	s.cs.add(s.mmu1.MapsTo(s.va, s.pa))
	s.cs.addPlain(u.Aligned(s.va))
	s.cs.addPlain(u.Aligned(s.pa))
	if params.VA != nil {
		s.cs.add(u.Pin(s.va, *params.VA))
	}
	if params.PA != nil {
		s.cs.add(u.Pin(s.pa, *params.PA))
	}
	return s, nil
}

// linkLaws 某个VA处的物理权限联结律 (单级组合)
func (s *singleLevel) linkLaws(va mmu.Addr) {
	paOf, err := s.mmu1.At(va)
	if err != nil {
		s.cs.add(nil, err)
		return
	}
	lv := mmu.Level{Table: s.stage1, Addr: va}
	s.cs.add(mmu.CompositionLaw(mmu.AccessWrite, s.phy, paOf, lv))
	s.cs.add(mmu.CompositionLaw(mmu.AccessExecute, s.phy, paOf, lv))
}

// witnessProbes 把见证里要看的权限位拉进模型
func (s *singleLevel) witnessProbes(q *Query) error {
	type probe struct {
		name string
		term *smt.Term
		err  error
	}
	ro, e1 := s.stage1.ReadOnly(s.va)
	nx, e2 := s.stage1.NoExecute(s.va)
	pro, e3 := s.phy.ReadOnly(s.paOfVA)
	pnx, e4 := s.phy.NoExecute(s.paOfVA)

	for _, p := range []probe{
		{"stage1_ro_va", ro, e1},
		{"stage1_nx_va", nx, e2},
		{"phy_ro_pa", pro, e3},
		{"phy_nx_pa", pnx, e4},
	} {
		if p.err != nil {
			return p.err
		}
		if err := q.Probe(p.name, p.term); err != nil {
			return err
		}
	}
	return nil
}

// ==================== 场景1: 基本映射 ====================

// buildBasicPaging 单级翻译的基本映射存在性:
// 页表权限位与物理权限位一致时, 必须存在满足的页表配置
func buildBasicPaging(cfg *mmu.Config, params Params) ([]*Check, error) {
	s, err := newSingleLevel(cfg, params)
	if err != nil {
		return nil, err
	}
	s.linkLaws(s.va)

	q := NewQuery(s.u.Decls())
	if err := s.cs.finish(q); err != nil {
		return nil, err
	}
	if err := s.witnessProbes(q); err != nil {
		return nil, err
	}

	return []*Check{
		{Name: "translation-witness", Kind: CheckSatisfiable, Query: q},
	}, nil
}

// ==================== 场景2: 别名 ====================

// aliasVariant 别名场景的三种提法
type aliasVariant int

const (
	aliasWitness      aliasVariant = iota // 一致配置存在性
	aliasRoDivergence                     // 别名间ro位分歧 (性质否定)
	aliasNxDivergence                     // 别名间nx位分歧 (性质否定)
)

// buildAliasCheck 构建别名场景的一个检查
// va1/va2与va两两互异却同映射到pa; 联结律对每个别名实例化,
// 因此任何别名间的权限分歧都不可满足
func buildAliasCheck(cfg *mmu.Config, params Params, variant aliasVariant) (*Query, error) {
	s, err := newSingleLevel(cfg, params)
	if err != nil {
		return nil, err
	}

	va1, err := s.u.Address("va1", mmu.SpaceVA)
	if err != nil {
		return nil, err
	}
	va2, err := s.u.Address("va2", mmu.SpaceVA)
	if err != nil {
		return nil, err
	}

	s.cs.addAll(s.u.AliasSet(s.mmu1, s.pa, s.va, va1, va2))
	s.cs.addPlain(s.u.Aligned(va1))
	s.cs.addPlain(s.u.Aligned(va2))
	if params.VA1 != nil {
		s.cs.add(s.u.Pin(va1, *params.VA1))
	}
	if params.VA2 != nil {
		s.cs.add(s.u.Pin(va2, *params.VA2))
	}

	for _, member := range []mmu.Addr{s.va, va1, va2} {
		s.linkLaws(member)
	}

	switch variant {
	case aliasRoDivergence:
		roVA, roErr := s.stage1.ReadOnly(s.va)
		roVA1, roErr1 := s.stage1.ReadOnly(va1)
		if roErr != nil || roErr1 != nil {
			return nil, fmt.Errorf("alias ro bits: %v / %v", roErr, roErr1)
		}
		s.cs.addPlain(smt.Distinct(roVA, roVA1))
	case aliasNxDivergence:
		nxVA, nxErr := s.stage1.NoExecute(s.va)
		nxVA2, nxErr2 := s.stage1.NoExecute(va2)
		if nxErr != nil || nxErr2 != nil {
			return nil, fmt.Errorf("alias nx bits: %v / %v", nxErr, nxErr2)
		}
		s.cs.addPlain(smt.Distinct(nxVA, nxVA2))
	}

	q := NewQuery(s.u.Decls())
	if err := s.cs.finish(q); err != nil {
		return nil, err
	}
	if variant == aliasWitness {
		if err := s.witnessProbes(q); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// buildAliasing 别名场景: 见证存在性一条, 权限分歧反证两条
func buildAliasing(cfg *mmu.Config, params Params) ([]*Check, error) {
	witness, err := buildAliasCheck(cfg, params, aliasWitness)
	if err != nil {
		return nil, err
	}
	roDiv, err := buildAliasCheck(cfg, params, aliasRoDivergence)
	if err != nil {
		return nil, err
	}
	nxDiv, err := buildAliasCheck(cfg, params, aliasNxDivergence)
	if err != nil {
		return nil, err
	}

	return []*Check{
		{Name: "alias-witness", Kind: CheckSatisfiable, Query: witness},
		{Name: "alias-ro-divergence", Kind: CheckRefutation, Query: roDiv},
		{Name: "alias-nx-divergence", Kind: CheckRefutation, Query: nxDiv},
	}, nil
}

// ==================== 场景3: 单级W^X ====================

// wxVariant 单级W^X场景的检查变体
type wxVariant int

const (
	wxWritable     wxVariant = iota // 写访问存在性
	wxExecutable                    // 执行访问存在性
	wxBoth                          // 同页写+执行 (性质否定)
	wxWriteOnRO                     // ro置位仍授写 (性质否定)
	wxExecuteOnNX                   // nx置位仍授执行 (性质否定)
)

// buildWXCheck 构建单级W^X场景的一个检查
// W^X性质落在页表位上: ro与nx互异; 授权链要求访问意图成立时
// 对应限制位与物理权限一致且为假
func buildWXCheck(cfg *mmu.Config, params Params, variant wxVariant) (*Query, error) {
	s, err := newSingleLevel(cfg, params)
	if err != nil {
		return nil, err
	}

	write, err := s.u.Flag("write")
	if err != nil {
		return nil, err
	}
	execute, err := s.u.Flag("execute")
	if err != nil {
		return nil, err
	}

	s.cs.add(mmu.WriteXorExecute(s.stage1, s.va))
	lv := mmu.Level{Table: s.stage1, Addr: s.va}
	s.cs.add(mmu.GrantRequires(write, mmu.AccessWrite, s.phy, s.paOfVA, lv))
	s.cs.add(mmu.GrantRequires(execute, mmu.AccessExecute, s.phy, s.paOfVA, lv))

	switch variant {
	case wxWritable:
		s.cs.addPlain(write)
	case wxExecutable:
		s.cs.addPlain(execute)
	case wxBoth:
		s.cs.addPlain(write)
		s.cs.addPlain(execute)
	case wxWriteOnRO:
		s.cs.add(s.stage1.SetReadOnly(s.va, true))
		s.cs.addPlain(write)
	case wxExecuteOnNX:
		s.cs.add(s.stage1.SetNoExecute(s.va, true))
		s.cs.addPlain(execute)
	}

	q := NewQuery(s.u.Decls())
	if err := s.cs.finish(q); err != nil {
		return nil, err
	}
	if variant == wxWritable || variant == wxExecutable {
		if err := s.witnessProbes(q); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// buildSingleLevelWX 单级W^X场景的全部检查
func buildSingleLevelWX(cfg *mmu.Config, params Params) ([]*Check, error) {
	defs := []struct {
		name    string
		kind    CheckKind
		variant wxVariant
	}{
		{"writable-witness", CheckSatisfiable, wxWritable},
		{"executable-witness", CheckSatisfiable, wxExecutable},
		{"write-and-execute", CheckRefutation, wxBoth},
		{"write-despite-read-only", CheckRefutation, wxWriteOnRO},
		{"execute-despite-no-execute", CheckRefutation, wxExecuteOnNX},
	}

	checks := make([]*Check, 0, len(defs))
	for _, def := range defs {
		q, err := buildWXCheck(cfg, params, def.variant)
		if err != nil {
			return nil, fmt.Errorf("build check %s: %w", def.name, err)
		}
		checks = append(checks, &Check{Name: def.name, Kind: def.kind, Query: q})
	}
	return checks, nil
}

// ==================== 场景4: 嵌套WXvisor ====================

// nested 两级翻译的公共符号: mmu1: VA→IPA (guest页表),
// mmu2: IPA→PA (hypervisor第二级页表)
type nested struct {
	u            *mmu.Universe
	va, va1, va2 mmu.Addr
	ipa, pa      mmu.Addr
	write        *smt.Term
	execute      *smt.Term
	mmu1, mmu2   *mmu.Translation
	stage1       *mmu.PermTable
	stage2       *mmu.PermTable
	phy          *mmu.PermTable
	ipaOfVA      mmu.Addr
	paOfVA       mmu.Addr
	cs           constraintSet
}

// nestedVariant 嵌套场景的检查变体
type nestedVariant int

const (
	nestedWritable      nestedVariant = iota // 写访问存在性
	nestedExecutable                         // 执行访问存在性
	nestedBoth                               // 同页写+执行 (性质否定)
	nestedRoDivergence                       // 别名间ro位分歧 (性质否定)
	nestedNxDivergence                       // 别名间nx位分歧 (性质否定)
	nestedStage2Denies                       // 第一级放行第二级拒绝仍授写 (性质否定)
)

// newNested 声明两级符号并铺好WXvisor基础约束:
// 别名钉入, 页对齐, mmu2单射, 每个别名处的组合联结律,
// 物理W^X, 写/执行授权链
func newNested(cfg *mmu.Config, params Params) (*nested, error) {
	u, err := mmu.NewUniverse(cfg)
	if err != nil {
		return nil, err
	}
	n := &nested{u: u}

	if n.va, err = u.Address("va", mmu.SpaceVA); err != nil {
		return nil, err
	}
	if n.va1, err = u.Address("va1", mmu.SpaceVA); err != nil {
		return nil, err
	}
	if n.va2, err = u.Address("va2", mmu.SpaceVA); err != nil {
		return nil, err
	}
	if n.ipa, err = u.Address("ipa", mmu.SpaceIPA); err != nil {
		return nil, err
	}
	if n.pa, err = u.Address("pa", mmu.SpacePA); err != nil {
		return nil, err
	}
	ipa1, err := u.Address("ipa1", mmu.SpaceIPA)
	if err != nil {
		return nil, err
	}
	ipa2, err := u.Address("ipa2", mmu.SpaceIPA)
	if err != nil {
		return nil, err
	}
	if n.write, err = u.Flag("write"); err != nil {
		return nil, err
	}
	if n.execute, err = u.Flag("execute"); err != nil {
		return nil, err
	}

	if n.mmu1, err = u.Translation("mmu1", mmu.SpaceVA, mmu.SpaceIPA); err != nil {
		return nil, err
	}
	if n.mmu2, err = u.Translation("mmu2", mmu.SpaceIPA, mmu.SpacePA); err != nil {
		return nil, err
	}
	if n.stage1, err = u.Permissions("stage1", mmu.SpaceVA); err != nil {
		return nil, err
	}
	if n.stage2, err = u.Permissions("stage2", mmu.SpaceIPA); err != nil {
		return nil, err
	}
	if n.phy, err = u.Permissions("phy", mmu.SpacePA); err != nil {
		return nil, err
	}
	if n.ipaOfVA, err = n.mmu1.At(n.va); err != nil {
		return nil, err
	}
	if n.paOfVA, err = n.mmu2.At(n.ipaOfVA); err != nil {
		return nil, err
	}

	// guest页表允许VA别名, 三个VA同落在一个IPA上
	n.cs.addAll(u.AliasSet(n.mmu1, n.ipa, n.va, n.va1, n.va2))
	n.cs.add(n.mmu2.MapsTo(n.ipa, n.pa))
	for _, a := range []mmu.Addr{n.va, n.va1, n.va2, n.ipa, n.pa} {
		n.cs.addPlain(u.Aligned(a))
	}
	// hypervisor第二级不允许IPA别名
	n.cs.add(n.mmu2.Injective(ipa1, ipa2))

	// 组合联结律对每个别名实例化: 同一物理页经任何别名到达
	// 都得到同一有效权限
	for _, member := range []mmu.Addr{n.va, n.va1, n.va2} {
		ipaOf, aerr := n.mmu1.At(member)
		if aerr != nil {
			return nil, aerr
		}
		paOf, aerr := n.mmu2.At(ipaOf)
		if aerr != nil {
			return nil, aerr
		}
		levels := []mmu.Level{
			{Table: n.stage1, Addr: member},
			{Table: n.stage2, Addr: ipaOf},
		}
		n.cs.add(mmu.CompositionLaw(mmu.AccessWrite, n.phy, paOf, levels...))
		n.cs.add(mmu.CompositionLaw(mmu.AccessExecute, n.phy, paOf, levels...))
	}

	n.cs.add(mmu.WriteXorExecute(n.phy, n.paOfVA))
	last := mmu.Level{Table: n.stage2, Addr: n.ipaOfVA}
	n.cs.add(mmu.GrantRequires(n.write, mmu.AccessWrite, n.phy, n.paOfVA, last))
	n.cs.add(mmu.GrantRequires(n.execute, mmu.AccessExecute, n.phy, n.paOfVA, last))

	if params.VA != nil {
		n.cs.add(u.Pin(n.va, *params.VA))
	}
	if params.VA1 != nil {
		n.cs.add(u.Pin(n.va1, *params.VA1))
	}
	if params.VA2 != nil {
		n.cs.add(u.Pin(n.va2, *params.VA2))
	}
	if params.IPA != nil {
		n.cs.add(u.Pin(n.ipa, *params.IPA))
	}
	if params.PA != nil {
		n.cs.add(u.Pin(n.pa, *params.PA))
	}
	return n, nil
}

// witnessProbes 把两级权限位与物理位拉进见证模型
func (n *nested) witnessProbes(q *Query) error {
	type probe struct {
		name string
		term *smt.Term
		err  error
	}
	ro1, e1 := n.stage1.ReadOnly(n.va)
	nx1, e2 := n.stage1.NoExecute(n.va)
	ro2, e3 := n.stage2.ReadOnly(n.ipaOfVA)
	nx2, e4 := n.stage2.NoExecute(n.ipaOfVA)
	pro, e5 := n.phy.ReadOnly(n.paOfVA)
	pnx, e6 := n.phy.NoExecute(n.paOfVA)

	for _, p := range []probe{
		{"stage1_ro_va", ro1, e1},
		{"stage1_nx_va", nx1, e2},
		{"stage2_ro_ipa", ro2, e3},
		{"stage2_nx_ipa", nx2, e4},
		{"phy_ro_pa", pro, e5},
		{"phy_nx_pa", pnx, e6},
	} {
		if p.err != nil {
			return p.err
		}
		if err := q.Probe(p.name, p.term); err != nil {
			return err
		}
	}
	return nil
}

// buildNestedCheck 构建嵌套场景的一个检查
func buildNestedCheck(cfg *mmu.Config, params Params, variant nestedVariant) (*Query, error) {
	if variant == nestedStage2Denies {
		// 走查向量: VA=0x1000, IPA=0x5000, PA=0x9000; 参数可覆盖
		if params.VA == nil {
			params.VA = addr(0x1000)
		}
		if params.IPA == nil {
			params.IPA = addr(0x5000)
		}
		if params.PA == nil {
			params.PA = addr(0x9000)
		}
	}

	n, err := newNested(cfg, params)
	if err != nil {
		return nil, err
	}

	switch variant {
	case nestedWritable:
		n.cs.addPlain(n.write)
	case nestedExecutable:
		n.cs.addPlain(n.execute)
	case nestedBoth:
		n.cs.addPlain(n.write)
		n.cs.addPlain(n.execute)
	case nestedRoDivergence:
		roVA, e1 := n.stage1.ReadOnly(n.va)
		roVA1, e2 := n.stage1.ReadOnly(n.va1)
		if e1 != nil || e2 != nil {
			return nil, fmt.Errorf("alias ro bits: %v / %v", e1, e2)
		}
		n.cs.addPlain(n.write)
		n.cs.addPlain(smt.Distinct(roVA, roVA1))
	case nestedNxDivergence:
		nxVA, e1 := n.stage1.NoExecute(n.va)
		nxVA1, e2 := n.stage1.NoExecute(n.va1)
		if e1 != nil || e2 != nil {
			return nil, fmt.Errorf("alias nx bits: %v / %v", e1, e2)
		}
		n.cs.addPlain(n.execute)
		n.cs.addPlain(smt.Distinct(nxVA, nxVA1))
	case nestedStage2Denies:
		// 第一级放行而第二级拒绝; 组合结果必须拒绝写,
		// 断言写被授予后公式应不可满足
		n.cs.add(n.stage1.SetReadOnly(n.va, false))
		n.cs.add(n.stage2.SetReadOnly(n.ipa, true))
		n.cs.addPlain(n.write)
	}

	q := NewQuery(n.u.Decls())
	if err := n.cs.finish(q); err != nil {
		return nil, err
	}
	if variant == nestedWritable || variant == nestedExecutable {
		if err := n.witnessProbes(q); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// buildNestedWXVisor 嵌套WXvisor场景的全部检查
func buildNestedWXVisor(cfg *mmu.Config, params Params) ([]*Check, error) {
	defs := []struct {
		name    string
		kind    CheckKind
		variant nestedVariant
	}{
		{"nested-writable", CheckSatisfiable, nestedWritable},
		{"nested-executable", CheckSatisfiable, nestedExecutable},
		{"nested-write-and-execute", CheckRefutation, nestedBoth},
		{"alias-ro-divergence", CheckRefutation, nestedRoDivergence},
		{"alias-nx-divergence", CheckRefutation, nestedNxDivergence},
		{"stage2-deny-overrides", CheckRefutation, nestedStage2Denies},
	}

	checks := make([]*Check, 0, len(defs))
	for _, def := range defs {
		q, err := buildNestedCheck(cfg, params, def.variant)
		if err != nil {
			return nil, fmt.Errorf("build check %s: %w", def.name, err)
		}
		checks = append(checks, &Check{Name: def.name, Kind: def.kind, Query: q})
	}
	return checks, nil
}
