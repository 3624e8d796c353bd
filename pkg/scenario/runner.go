package scenario

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"wxvisor/pkg/smt"
)

// ==================== 运行报告 ====================

// Assignment 见证模型中一个符号的具体赋值
// 位向量按以太坊惯例打印为0x十六进制
type Assignment struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CheckResult 单个检查的结论
type CheckResult struct {
	Name           string        `json:"name"`
	Kind           string        `json:"kind"`
	Result         string        `json:"result"`
	Interpretation string        `json:"interpretation"`
	Witness        []Assignment  `json:"witness,omitempty"`
	Duration       time.Duration `json:"duration"`
	Error          string        `json:"error,omitempty"`
}

// Report 一个场景全部检查的结论
type Report struct {
	Scenario     string        `json:"scenario"`
	AddressWidth int           `json:"address_width"`
	Checks       []CheckResult `json:"checks"`
	Duration     time.Duration `json:"duration"`
}

// OracleFactory 创建一次性oracle会话
// 每个检查使用独立会话, 检查之间不共享任何求解器状态
type OracleFactory func() (smt.Oracle, error)

// ==================== 运行器 ====================

// Run 逐个求解场景的检查并汇总报告
// 同步批处理: 一个检查求解完成才开始下一个; oracle创建失败是
// 致命错误; unknown结论如实记录, 绝不与unsat混淆
func Run(sc *Scenario, factory OracleFactory) (*Report, error) {
	if sc == nil || factory == nil {
		return nil, fmt.Errorf("%w: nil scenario or oracle factory", smt.ErrInvalidFormula)
	}

	report := &Report{
		Scenario:     sc.Kind.String(),
		AddressWidth: sc.Config.AddressWidth,
		Checks:       make([]CheckResult, 0, len(sc.Checks)),
	}
	startTime := time.Now()

	for _, check := range sc.Checks {
		oracle, err := factory()
		if err != nil {
			return nil, fmt.Errorf("create oracle session: %w", err)
		}

		outcome, err := check.Query.Solve(oracle)
		closeErr := oracle.Close()

		cr := CheckResult{
			Name: check.Name,
			Kind: check.Kind.String(),
		}
		switch {
		case err != nil && errors.Is(err, smt.ErrInconclusive):
			cr.Result = smt.ResultUnknown.String()
			cr.Interpretation = interpret(check.Kind, smt.ResultUnknown)
			cr.Error = err.Error()
			cr.Duration = outcome.Duration
		case err != nil:
			// 构建/oracle硬错误: 无部分结果, 整体中止
			return nil, fmt.Errorf("check %s: %w", check.Name, err)
		default:
			cr.Result = outcome.Result.String()
			cr.Interpretation = interpret(check.Kind, outcome.Result)
			cr.Witness = witnessAssignments(outcome.Witness)
			cr.Duration = outcome.Duration
		}
		if closeErr != nil {
			log.Printf("[Scenario] Warning: failed to close oracle session: %v", closeErr)
		}

		log.Printf("[Scenario] %s/%s: %s (%v)", sc.Kind, check.Name, cr.Result, cr.Duration)
		report.Checks = append(report.Checks, cr)
	}

	report.Duration = time.Since(startTime)
	return report, nil
}

// interpret 按检查提法解释verdict
// 存在性查询的sat是"找到了一致配置"; 反证式查询的sat是"找到了
// 违反性质的反例", unsat才是"性质成立"
func interpret(kind CheckKind, result smt.Result) string {
	switch result {
	case smt.ResultSat:
		if kind == CheckRefutation {
			return "counterexample found: the property is violated by the witness below"
		}
		return "a consistent page-table configuration exists (witness below)"
	case smt.ResultUnsat:
		if kind == CheckRefutation {
			return "property holds: its negation is unsatisfiable"
		}
		return "no consistent page-table configuration exists"
	default:
		return "inconclusive: the oracle could not decide within its resource limits"
	}
}

// witnessAssignments 把见证模型转成可序列化的赋值列表
func witnessAssignments(m *smt.Model) []Assignment {
	if m == nil {
		return nil
	}
	out := make([]Assignment, 0, m.Len())
	for _, name := range m.Names() {
		v, _ := m.Value(name)
		assignment := Assignment{Name: name}
		if v.Sort.Kind == smt.SortBitVec {
			assignment.Value = hexutil.EncodeUint64(v.BV)
		} else {
			assignment.Value = v.String()
		}
		out = append(out, assignment)
	}
	return out
}
