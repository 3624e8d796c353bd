package mmu

import (
	"fmt"

	"wxvisor/pkg/smt"
)

// Translation 一级地址翻译 (mmu1: VA→IPA 或 VA→PA, mmu2: IPA→PA)
// 建模为未解释全函数: 同输入同输出由求解器的函数语义保证,
// 未被钉死的输入由求解器在所有一致的页表配置中自由选择
type Translation struct {
	fn   *smt.FuncRef
	from Space
	to   Space
}

// Translation 声明一个翻译函数
// 源空间与目标空间必须不同
func (u *Universe) Translation(name string, from, to Space) (*Translation, error) {
	if from == to {
		return nil, fmt.Errorf("%w: translation %s maps %s to itself", ErrConfig, name, from)
	}

	fn := smt.NewFuncRef(name, u.addrSort(), u.addrSort())
	if err := u.decls.DeclareFunction(fn); err != nil {
		return nil, err
	}
	return &Translation{fn: fn, from: from, to: to}, nil
}

// Name 返回翻译函数名
func (t *Translation) Name() string {
	return t.fn.Name
}

// From 返回源地址空间
func (t *Translation) From() Space {
	return t.from
}

// To 返回目标地址空间
func (t *Translation) To() Space {
	return t.to
}

// At 对地址应用翻译, 得到目标空间的派生地址
func (t *Translation) At(a Addr) (Addr, error) {
	if a.Space != t.from {
		return Addr{}, fmt.Errorf("%w: translation %s expects %s address, got %s",
			ErrSpaceMismatch, t.fn.Name, t.from, a.Space)
	}
	return Addr{Term: smt.Apply(t.fn, a.Term), Space: t.to}, nil
}

// MapsTo 钉死一条映射: f(in) == out
// 同一输入钉多条映射时, 若输出不一致则公式整体unsat (矛盾钉入本身是被检验的性质)
func (t *Translation) MapsTo(in, out Addr) (*smt.Term, error) {
	if in.Space != t.from {
		return nil, fmt.Errorf("%w: translation %s expects %s input, got %s",
			ErrSpaceMismatch, t.fn.Name, t.from, in.Space)
	}
	if out.Space != t.to {
		return nil, fmt.Errorf("%w: translation %s produces %s, got %s output",
			ErrSpaceMismatch, t.fn.Name, t.to, out.Space)
	}
	return smt.Eq(smt.Apply(t.fn, in.Term), out.Term), nil
}

// Injective 翻译不允许别名: distinct(a,b) => distinct(f(a),f(b))
// 对两个自由地址符号实例化, WXvisor的第二级翻译以此禁止IPA别名
func (t *Translation) Injective(a, b Addr) (*smt.Term, error) {
	fa, err := t.At(a)
	if err != nil {
		return nil, err
	}
	fb, err := t.At(b)
	if err != nil {
		return nil, err
	}
	return smt.Implies(
		smt.Distinct(a.Term, b.Term),
		smt.Distinct(fa.Term, fb.Term),
	), nil
}
