package smt

import (
	"errors"
	"testing"
	"time"
)

// ==================== 类别测试 ====================

func TestSortValid(t *testing.T) {
	tests := []struct {
		name    string
		sort    Sort
		wantErr bool
	}{
		{"bool", BoolSort(), false},
		{"bv1", BitVecSort(1), false},
		{"bv32", BitVecSort(32), false},
		{"bv64", BitVecSort(64), false},
		{"bv0", BitVecSort(0), true},
		{"bv65", BitVecSort(65), true},
		{"negative", BitVecSort(-8), true},
	}

	for _, tt := range tests {
		err := tt.sort.Valid()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Valid() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestSortString(t *testing.T) {
	if BoolSort().String() != "Bool" {
		t.Errorf("Expected 'Bool', got '%s'", BoolSort().String())
	}
	if BitVecSort(32).String() != "BitVec(32)" {
		t.Errorf("Expected 'BitVec(32)', got '%s'", BitVecSort(32).String())
	}
}

// ==================== 声明注册表测试 ====================

func TestDeclsDuplicateRejected(t *testing.T) {
	d := NewDecls()

	if err := d.DeclareSymbol("va", BitVecSort(32)); err != nil {
		t.Fatalf("First declaration failed: %v", err)
	}
	if err := d.DeclareSymbol("va", BitVecSort(32)); !errors.Is(err, ErrInvalidFormula) {
		t.Errorf("Duplicate symbol should be rejected, got %v", err)
	}

	fn := NewFuncRef("mmu1", BitVecSort(32), BitVecSort(32))
	if err := d.DeclareFunction(fn); err != nil {
		t.Fatalf("Function declaration failed: %v", err)
	}
	if err := d.DeclareFunction(fn); !errors.Is(err, ErrInvalidFormula) {
		t.Errorf("Duplicate function should be rejected, got %v", err)
	}

	// 符号与函数共享命名空间
	if err := d.DeclareSymbol("mmu1", BoolSort()); !errors.Is(err, ErrInvalidFormula) {
		t.Errorf("Symbol shadowing function should be rejected, got %v", err)
	}
	if err := d.DeclareFunction(NewFuncRef("va", BitVecSort(32), BoolSort())); !errors.Is(err, ErrInvalidFormula) {
		t.Errorf("Function shadowing symbol should be rejected, got %v", err)
	}
}

func TestDeclsOrderPreserved(t *testing.T) {
	d := NewDecls()
	names := []string{"va", "ipa", "pa", "write", "execute"}
	for _, n := range names {
		if err := d.DeclareSymbol(n, BitVecSort(32)); err != nil {
			t.Fatalf("Declare %s failed: %v", n, err)
		}
	}

	got := d.SymbolNames()
	if len(got) != len(names) {
		t.Fatalf("Expected %d symbols, got %d", len(names), len(got))
	}
	for i, n := range names {
		if got[i] != n {
			t.Errorf("Position %d: expected %s, got %s", i, n, got[i])
		}
	}
}

func TestValidateUndeclaredSymbol(t *testing.T) {
	d := NewDecls()

	err := d.Validate(Eq(Symbol("ghost", BitVecSort(32)), Lit(0, 32)))
	if !errors.Is(err, ErrInvalidFormula) {
		t.Errorf("Undeclared symbol should be rejected, got %v", err)
	}
}

func TestValidateUndeclaredFunction(t *testing.T) {
	d := NewDecls()
	if err := d.DeclareSymbol("va", BitVecSort(32)); err != nil {
		t.Fatal(err)
	}

	ghost := NewFuncRef("mmu9", BitVecSort(32), BitVecSort(32))
	err := d.Validate(Eq(Apply(ghost, Symbol("va", BitVecSort(32))), Lit(0, 32)))
	if !errors.Is(err, ErrInvalidFormula) {
		t.Errorf("Undeclared function should be rejected, got %v", err)
	}
}

func TestValidateSortMismatch(t *testing.T) {
	d := NewDecls()
	if err := d.DeclareSymbol("va", BitVecSort(32)); err != nil {
		t.Fatal(err)
	}
	if err := d.DeclareSymbol("flag", BoolSort()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		term *Term
	}{
		{"eq width mismatch", Eq(Symbol("va", BitVecSort(32)), Lit(1, 64))},
		{"symbol sort mismatch", Eq(Symbol("va", BitVecSort(64)), Lit(1, 64))},
		{"and over bitvec", And(Symbol("flag", BoolSort()), Symbol("va", BitVecSort(32)))},
		{"not over bitvec", Not(Symbol("va", BitVecSort(32)))},
		{"bvand over bool", BVAnd(Symbol("flag", BoolSort()), Symbol("flag", BoolSort()))},
	}
	for _, tt := range tests {
		if err := d.Validate(tt.term); !errors.Is(err, ErrInvalidFormula) {
			t.Errorf("%s: expected ErrInvalidFormula, got %v", tt.name, err)
		}
	}
}

func TestValidateLiteralWidth(t *testing.T) {
	d := NewDecls()

	if err := d.Validate(Eq(Lit(0xFFF, 12), Lit(0, 12))); err != nil {
		t.Errorf("0xFFF fits in 12 bits, got %v", err)
	}
	if err := d.Validate(Eq(Lit(0x1000, 12), Lit(0, 12))); !errors.Is(err, ErrInvalidFormula) {
		t.Errorf("0x1000 does not fit in 12 bits, got %v", err)
	}
}

func TestValidateWellFormed(t *testing.T) {
	d := NewDecls()
	if err := d.DeclareSymbol("va", BitVecSort(32)); err != nil {
		t.Fatal(err)
	}
	if err := d.DeclareSymbol("write", BoolSort()); err != nil {
		t.Fatal(err)
	}
	mmu1 := NewFuncRef("mmu1", BitVecSort(32), BitVecSort(32))
	roBits := NewFuncRef("ro_bits", BitVecSort(32), BoolSort())
	if err := d.DeclareFunction(mmu1); err != nil {
		t.Fatal(err)
	}
	if err := d.DeclareFunction(roBits); err != nil {
		t.Fatal(err)
	}

	va := Symbol("va", BitVecSort(32))
	formula := And(
		Eq(BVAnd(va, Lit(0xFFF, 32)), Lit(0, 32)),
		Implies(Symbol("write", BoolSort()), Eq(Apply(roBits, va), False())),
		Distinct(Apply(mmu1, va), va),
	)
	if err := d.Validate(formula); err != nil {
		t.Errorf("Well-formed formula rejected: %v", err)
	}
}

// ==================== 项打印测试 ====================

func TestTermString(t *testing.T) {
	va := Symbol("va", BitVecSort(32))
	mmu1 := NewFuncRef("mmu1", BitVecSort(32), BitVecSort(32))

	tests := []struct {
		term     *Term
		expected string
	}{
		{Lit(0x12345000, 32), "0x12345000"},
		{True(), "true"},
		{Eq(Apply(mmu1, va), Symbol("pa", BitVecSort(32))), "(= (mmu1 va) pa)"},
		{Implies(Symbol("write", BoolSort()), Not(Symbol("ro", BoolSort()))), "(=> write (not ro))"},
		{Distinct(va, Symbol("va1", BitVecSort(32))), "(distinct va va1)"},
		{Eq(BVAnd(va, Lit(0xFFF, 32)), Lit(0, 32)), "(= (bvand va 0xfff) 0x0)"},
	}
	for _, tt := range tests {
		if got := tt.term.String(); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

// ==================== 常量折叠测试 ====================

func TestSimplifyGroundFormulas(t *testing.T) {
	tests := []struct {
		name     string
		term     *Term
		expected bool
	}{
		{"and true", And(True(), True()), true},
		{"and false absorbs", And(True(), False(), True()), false},
		{"or false", Or(False(), False()), false},
		{"or true absorbs", Or(False(), True()), true},
		{"not", Not(False()), true},
		{"implies false antecedent", Implies(False(), False()), true},
		{"implies true both", Implies(True(), True()), true},
		{"implies broken", Implies(True(), False()), false},
		{"eq bv equal", Eq(Lit(0x1000, 32), Lit(0x1000, 32)), true},
		{"eq bv differ", Eq(Lit(0x1000, 32), Lit(0x5000, 32)), false},
		{"distinct bv", Distinct(Lit(1, 32), Lit(2, 32), Lit(3, 32)), true},
		{"distinct repeated", Distinct(Lit(1, 32), Lit(2, 32), Lit(1, 32)), false},
		{"bvand mask aligned", Eq(BVAnd(Lit(0x12345000, 32), Lit(0xFFF, 32)), Lit(0, 32)), true},
		{"bvand mask unaligned", Eq(BVAnd(Lit(0x12345678, 32), Lit(0xFFF, 32)), Lit(0, 32)), false},
	}

	for _, tt := range tests {
		got := Simplify(tt.term)
		if got.Kind != TermBoolLit {
			t.Errorf("%s: ground formula not fully folded: %s", tt.name, got)
			continue
		}
		if got.Bool != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, got.Bool)
		}
	}
}

func TestSimplifyKeepsSymbols(t *testing.T) {
	write := Symbol("write", BoolSort())

	// true参数被吸收, 符号保留
	got := Simplify(And(True(), write, True()))
	if got != write {
		t.Errorf("Expected bare symbol after absorbing true, got %s", got)
	}

	// 双重否定消去
	got = Simplify(Not(Not(write)))
	if got != write {
		t.Errorf("Expected double negation elimination, got %s", got)
	}

	// 无字面量的项原样返回 (指针相等, 不重建)
	orig := Or(write, Symbol("execute", BoolSort()))
	if Simplify(orig) != orig {
		t.Error("Literal-free term should be returned unchanged")
	}
}

func BenchmarkSimplify(b *testing.B) {
	va := Symbol("va", BitVecSort(32))
	roBits := NewFuncRef("ro_bits", BitVecSort(32), BoolSort())
	formula := And(
		Eq(BVAnd(va, Lit(0xFFF, 32)), Lit(0, 32)),
		Implies(True(), Eq(Apply(roBits, va), False())),
		Or(False(), Distinct(Lit(1, 32), Lit(2, 32))),
	)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Simplify(formula)
	}
}

// ==================== 模型测试 ====================

func TestModelOrderAndValues(t *testing.T) {
	m := NewModel()
	m.Set("va", BVValue(0x12345000, 32))
	m.Set("write", BoolValue(true))
	m.Set("ro", BoolValue(false))

	names := m.Names()
	if len(names) != 3 || names[0] != "va" || names[1] != "write" || names[2] != "ro" {
		t.Errorf("Model order not preserved: %v", names)
	}

	v, ok := m.Value("va")
	if !ok || v.String() != "0x12345000" {
		t.Errorf("Expected 0x12345000, got %v (ok=%v)", v, ok)
	}
	v, _ = m.Value("write")
	if v.String() != "true" {
		t.Errorf("Expected true, got %v", v)
	}

	// 覆盖不改变顺序
	m.Set("va", BVValue(0x1000, 32))
	if m.Len() != 3 || m.Names()[0] != "va" {
		t.Error("Overwrite must keep order and length")
	}
}

// ==================== 结果与配置测试 ====================

func TestResultString(t *testing.T) {
	tests := []struct {
		result   Result
		expected string
	}{
		{ResultUnknown, "unknown"},
		{ResultSat, "sat"},
		{ResultUnsat, "unsat"},
		{Result(99), "invalid"},
	}
	for _, tt := range tests {
		if got := tt.result.String(); got != tt.expected {
			t.Errorf("Expected '%s', got '%s'", tt.expected, got)
		}
	}
}

func TestDefaultOracleConfig(t *testing.T) {
	config := DefaultOracleConfig()

	if config.SolverTimeout != "30s" {
		t.Errorf("Expected solver_timeout '30s', got '%s'", config.SolverTimeout)
	}
	if config.Verbose {
		t.Error("Verbose should default to false")
	}
}

func TestOracleConfigMergeWithDefaults(t *testing.T) {
	config := &OracleConfig{Verbose: true}
	config.MergeWithDefaults()

	if config.SolverTimeout != "30s" {
		t.Errorf("Default timeout should be applied, got '%s'", config.SolverTimeout)
	}
	if !config.Verbose {
		t.Error("Custom value should be preserved")
	}
}

func TestGetSolverTimeoutDuration(t *testing.T) {
	config := &OracleConfig{SolverTimeout: "5s"}
	if d := config.GetSolverTimeoutDuration(); d != 5*time.Second {
		t.Errorf("Expected 5s, got %v", d)
	}

	// 无效格式应返回默认值
	config.SolverTimeout = "invalid"
	if d := config.GetSolverTimeoutDuration(); d != 30*time.Second {
		t.Errorf("Expected default 30s for invalid format, got %v", d)
	}
}
