package scenario

import (
	"errors"
	"fmt"
	"time"

	"wxvisor/pkg/smt"
)

// ErrQueryConsumed 查询已被求解过; 每个查询一次性使用, 求解后不可再变更或重解
var ErrQueryConsumed = errors.New("query already solved")

// ==================== 查询状态机 ====================

// QueryState 查询生命周期状态
// Building累积约束, Asserted表示约束已交给oracle, Solved持有结论,
// Done为终态; 没有任何回退转移
type QueryState int

const (
	StateIdle QueryState = iota
	StateBuilding
	StateAsserted
	StateSolved
	StateDone
)

// String 返回状态名
func (qs QueryState) String() string {
	names := []string{"Idle", "Building", "Asserted", "Solved", "Done"}
	if int(qs) < len(names) {
		return names[qs]
	}
	return "Unknown"
}

// ==================== 查询 ====================

// Query 一次性的可满足性查询: 声明集 + 断言合取 + 求解目标
// 生命周期 create→assert→solve→discard, 开始求解后不再接受变更
type Query struct {
	decls   *smt.Decls
	asserts []*smt.Term
	state   QueryState
	outcome *Outcome
}

// Outcome 求解结论
// 结论为sat时Witness持有见证赋值 (具体地址与权限位); unknown绝不
// 折叠为unsat, 由调用方连同ErrInconclusive一起如实上报
type Outcome struct {
	Result   smt.Result
	Witness  *smt.Model
	Duration time.Duration
}

// NewQuery 以给定声明集创建查询, 进入Building状态
func NewQuery(decls *smt.Decls) *Query {
	return &Query{decls: decls, state: StateBuilding}
}

// State 返回当前状态
func (q *Query) State() QueryState {
	return q.state
}

// Decls 返回查询的声明集
func (q *Query) Decls() *smt.Decls {
	return q.decls
}

// Assertions 返回已累积的断言 (按加入顺序)
func (q *Query) Assertions() []*smt.Term {
	return q.asserts
}

// Assert 校验并累积一批布尔断言
func (q *Query) Assert(terms ...*smt.Term) error {
	if q.state != StateBuilding {
		return fmt.Errorf("%w: cannot assert in state %s", ErrQueryConsumed, q.state)
	}
	for _, t := range terms {
		if err := q.decls.Validate(t); err != nil {
			return err
		}
		if t.Sort().Kind != smt.SortBool {
			return fmt.Errorf("%w: asserted term has sort %s, want Bool",
				smt.ErrInvalidFormula, t.Sort())
		}
		q.asserts = append(q.asserts, t)
	}
	return nil
}

// Probe 声明一个探针符号并钉到给定的项上
// 见证模型只含已声明符号的赋值, 探针把感兴趣的派生值 (某地址上的
// 权限位等) 拉进模型, oracle接口保持declare/assert/check/model不变
func (q *Query) Probe(name string, t *smt.Term) error {
	if q.state != StateBuilding {
		return fmt.Errorf("%w: cannot probe in state %s", ErrQueryConsumed, q.state)
	}
	if err := q.decls.Validate(t); err != nil {
		return err
	}
	if err := q.decls.DeclareSymbol(name, t.Sort()); err != nil {
		return err
	}
	q.asserts = append(q.asserts, smt.Eq(smt.Symbol(name, t.Sort()), t))
	return nil
}

// Solve 把整个查询交给oracle求解
// 声明按注册顺序下发, 断言先做常量折叠再下发; 重复调用返回ErrQueryConsumed
func (q *Query) Solve(oracle smt.Oracle) (*Outcome, error) {
	if q.state != StateBuilding {
		return nil, fmt.Errorf("%w: cannot solve in state %s", ErrQueryConsumed, q.state)
	}

	startTime := time.Now()

	for _, name := range q.decls.SymbolNames() {
		sort, _ := q.decls.SymbolSort(name)
		if err := oracle.DeclareSymbol(name, sort); err != nil {
			return nil, fmt.Errorf("declare symbol %s: %w", name, err)
		}
	}
	for _, name := range q.decls.FuncNames() {
		fn, _ := q.decls.Func(name)
		if err := oracle.DeclareFunction(fn); err != nil {
			return nil, fmt.Errorf("declare function %s: %w", name, err)
		}
	}
	for _, t := range q.asserts {
		if err := oracle.Assert(smt.Simplify(t)); err != nil {
			return nil, fmt.Errorf("assert %s: %w", t, err)
		}
	}
	q.state = StateAsserted

	result, err := oracle.CheckSat()
	outcome := &Outcome{Result: result, Duration: time.Since(startTime)}
	q.outcome = outcome
	q.state = StateSolved

	if err != nil {
		q.state = StateDone
		if errors.Is(err, smt.ErrInconclusive) {
			// unknown: 结论未定, 原样上报
			return outcome, err
		}
		return nil, err
	}

	if result == smt.ResultSat {
		witness, merr := oracle.Model()
		if merr != nil {
			q.state = StateDone
			return nil, fmt.Errorf("fetch witness model: %w", merr)
		}
		outcome.Witness = witness
	}

	q.state = StateDone
	return outcome, nil
}
