package integration

import (
	"testing"

	"wxvisor/pkg/mmu"
	"wxvisor/pkg/scenario"
	"wxvisor/pkg/smt"
)

// z3Factory 每个检查一个独立的Z3会话; 未启用z3的构建在运行时跳过
func z3Factory(t *testing.T) scenario.OracleFactory {
	t.Helper()
	oracle, err := smt.NewZ3Oracle(smt.DefaultOracleConfig())
	if err != nil {
		t.Skipf("Z3 not available: %v", err)
	}
	oracle.Close()

	return func() (smt.Oracle, error) {
		return smt.NewZ3Oracle(smt.DefaultOracleConfig())
	}
}

// expectedVerdicts 四个场景每个检查的期望结论
// 存在性检查期望sat (给出见证), 反证式检查期望unsat (性质成立)
var expectedVerdicts = map[scenario.Kind]map[string]string{
	scenario.BasicPaging: {
		"translation-witness": "sat",
	},
	scenario.Aliasing: {
		"alias-witness":       "sat",
		"alias-ro-divergence": "unsat",
		"alias-nx-divergence": "unsat",
	},
	scenario.SingleLevelWX: {
		"writable-witness":           "sat",
		"executable-witness":         "sat",
		"write-and-execute":          "unsat",
		"write-despite-read-only":    "unsat",
		"execute-despite-no-execute": "unsat",
	},
	scenario.NestedWXVisor: {
		"nested-writable":          "sat",
		"nested-executable":        "sat",
		"nested-write-and-execute": "unsat",
		"alias-ro-divergence":      "unsat",
		"alias-nx-divergence":      "unsat",
		"stage2-deny-overrides":    "unsat",
	},
}

func runScenario(t *testing.T, kind scenario.Kind, params scenario.Params) *scenario.Report {
	t.Helper()
	sc, err := scenario.Build(kind, mmu.DefaultConfig(), params)
	if err != nil {
		t.Fatalf("Build %s failed: %v", kind, err)
	}
	report, err := scenario.Run(sc, z3Factory(t))
	if err != nil {
		t.Fatalf("Run %s failed: %v", kind, err)
	}
	return report
}

func TestAllScenarioVerdicts(t *testing.T) {
	params, err := scenario.Preset("default")
	if err != nil {
		t.Fatal(err)
	}

	for kind, verdicts := range expectedVerdicts {
		report := runScenario(t, kind, params)
		if len(report.Checks) != len(verdicts) {
			t.Fatalf("%s: expected %d checks, got %d", kind, len(verdicts), len(report.Checks))
		}
		for _, cr := range report.Checks {
			want, ok := verdicts[cr.Name]
			if !ok {
				t.Errorf("%s: unexpected check %s", kind, cr.Name)
				continue
			}
			if cr.Result != want {
				t.Errorf("%s/%s: expected %s, got %s", kind, cr.Name, want, cr.Result)
			}
			if cr.Result == "sat" && len(cr.Witness) == 0 {
				t.Errorf("%s/%s: sat verdict must carry a witness", kind, cr.Name)
			}
			if cr.Result == "unsat" && len(cr.Witness) != 0 {
				t.Errorf("%s/%s: unsat verdict must not carry a witness", kind, cr.Name)
			}
		}
	}
}

// 基本映射的见证必须按钉入的向量赋值
func TestBasicPagingWitnessMatchesPins(t *testing.T) {
	va := uint64(0x12345000)
	pa := uint64(0x9000)
	report := runScenario(t, scenario.BasicPaging, scenario.Params{VA: &va, PA: &pa})

	cr := report.Checks[0]
	if cr.Result != "sat" {
		t.Fatalf("Expected sat, got %s", cr.Result)
	}
	witness := make(map[string]string, len(cr.Witness))
	for _, a := range cr.Witness {
		witness[a.Name] = a.Value
	}
	if witness["va"] != "0x12345000" {
		t.Errorf("Expected va=0x12345000 in witness, got %s", witness["va"])
	}
	if witness["pa"] != "0x9000" {
		t.Errorf("Expected pa=0x9000 in witness, got %s", witness["pa"])
	}
}

// 规格走查: VA=0x1000→IPA=0x5000→PA=0x9000, 第一级放行写而第二级
// 拒绝, 组合结果必须拒绝写 (断言授予写不可满足)
func TestStageOverridePreset(t *testing.T) {
	params, err := scenario.Preset("stage-override")
	if err != nil {
		t.Fatal(err)
	}
	report := runScenario(t, scenario.NestedWXVisor, params)

	for _, cr := range report.Checks {
		if cr.Name == "stage2-deny-overrides" {
			if cr.Result != "unsat" {
				t.Errorf("stage2-deny-overrides: expected unsat, got %s", cr.Result)
			}
			return
		}
	}
	t.Fatal("stage2-deny-overrides check not found")
}

// 矛盾的钉入只以unsat结论浮现: 同一翻译输入钉到两个不同输出不是
// 构建或断言错误, 矛盾由求解器裁决
func TestContradictoryPinsUnsat(t *testing.T) {
	factory := z3Factory(t)

	u, err := mmu.NewUniverse(mmu.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	va, err := u.Address("va", mmu.SpaceVA)
	if err != nil {
		t.Fatal(err)
	}
	pa1, err := u.Address("pa1", mmu.SpacePA)
	if err != nil {
		t.Fatal(err)
	}
	pa2, err := u.Address("pa2", mmu.SpacePA)
	if err != nil {
		t.Fatal(err)
	}
	mmu1, err := u.Translation("mmu1", mmu.SpaceVA, mmu.SpacePA)
	if err != nil {
		t.Fatal(err)
	}

	q := scenario.NewQuery(u.Decls())
	for _, build := range []func() (*smt.Term, error){
		func() (*smt.Term, error) { return mmu1.MapsTo(va, pa1) },
		func() (*smt.Term, error) { return mmu1.MapsTo(va, pa2) },
		func() (*smt.Term, error) { return u.Pin(pa1, 0x1000) },
		func() (*smt.Term, error) { return u.Pin(pa2, 0x2000) },
	} {
		term, err := build()
		if err != nil {
			t.Fatalf("Building pin constraint failed: %v", err)
		}
		if err := q.Assert(term); err != nil {
			t.Fatalf("Contradictory pin rejected at assert time: %v", err)
		}
	}

	oracle, err := factory()
	if err != nil {
		t.Fatal(err)
	}
	defer oracle.Close()

	outcome, err := q.Solve(oracle)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if outcome.Result != smt.ResultUnsat {
		t.Errorf("Contradictory pins should solve to unsat, got %s", outcome.Result)
	}
	if outcome.Witness != nil {
		t.Error("Unsat outcome must not carry a witness")
	}
}

// 同一场景同一参数求解两次, 结论必须一致 (建模幂等性)
func TestVerdictIdempotence(t *testing.T) {
	params, err := scenario.Preset("default")
	if err != nil {
		t.Fatal(err)
	}

	first := runScenario(t, scenario.NestedWXVisor, params)
	second := runScenario(t, scenario.NestedWXVisor, params)

	for i := range first.Checks {
		if first.Checks[i].Result != second.Checks[i].Result {
			t.Errorf("%s: verdict changed between runs: %s vs %s",
				first.Checks[i].Name, first.Checks[i].Result, second.Checks[i].Result)
		}
	}
}
