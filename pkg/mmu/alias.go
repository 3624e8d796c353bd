package mmu

import (
	"fmt"

	"wxvisor/pkg/smt"
)

// AliasSet 别名约束: 所有成员两两互异, 却经同一翻译落在同一目标地址
// 返回的约束切片依次为 distinct(成员...) 与每个成员的映射钉入
// 权限检查必须对每个成员统一实例化 (见 CompositionLaw 的调用方),
// 否则某个别名可能绕过另一个别名被拒绝的访问 —— 这正是该理论要抓的漏洞
func (u *Universe) AliasSet(t *Translation, target Addr, members ...Addr) ([]*smt.Term, error) {
	if len(members) < 2 {
		return nil, fmt.Errorf("%w: alias set needs at least 2 members, got %d", ErrConfig, len(members))
	}

	terms := make([]*smt.Term, 0, len(members)+1)
	memberTerms := make([]*smt.Term, len(members))
	for i, m := range members {
		if m.Space != t.From() {
			return nil, fmt.Errorf("%w: alias member in %s, translation %s starts at %s",
				ErrSpaceMismatch, m.Space, t.Name(), t.From())
		}
		memberTerms[i] = m.Term
	}
	terms = append(terms, smt.Distinct(memberTerms...))

	for _, m := range members {
		pin, err := t.MapsTo(m, target)
		if err != nil {
			return nil, err
		}
		terms = append(terms, pin)
	}
	return terms, nil
}
