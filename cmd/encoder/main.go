package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"wxvisor/pkg/mmu"
	"wxvisor/pkg/scenario"
	"wxvisor/pkg/types"
)

// encoder 不求解, 只打印每个检查的声明与断言集 (s表达式),
// 用于调试编码; 在未启用z3的构建里也能运行
var (
	scenarioName = flag.String("scenario", "nested-wxvisor", "Scenario to encode (basic-paging, aliasing, single-level-wx, nested-wxvisor, all)")
	presetName   = flag.String("preset", "default", "Named address preset ("+strings.Join(scenario.PresetNames(), ", ")+")")
	checkName    = flag.String("check", "", "Only print the named check")
	vaFlag       = flag.String("va", "", "Pin VA (hex or decimal)")
	widthFlag    = flag.Int("width", 0, "Address width in bits")
	pageBitsFlag = flag.Int("page-bits", 0, "Page offset bits")
)

func main() {
	flag.Parse()

	params, err := scenario.Preset(*presetName)
	if err != nil {
		fatal(err)
	}
	if *vaFlag != "" {
		parsed, err := types.ParseFlexibleUint64(*vaFlag)
		if err != nil {
			fatal(err)
		}
		v := parsed.Value()
		params.VA = &v
	}

	cfg := mmu.DefaultConfig()
	if *widthFlag != 0 {
		cfg.AddressWidth = *widthFlag
	}
	if *pageBitsFlag != 0 {
		cfg.PageBits = *pageBitsFlag
	}

	var kinds []scenario.Kind
	if *scenarioName == "all" {
		kinds = scenario.AllKinds()
	} else {
		kind, err := scenario.ParseKind(*scenarioName)
		if err != nil {
			fatal(err)
		}
		kinds = []scenario.Kind{kind}
	}

	for _, kind := range kinds {
		sc, err := scenario.Build(kind, cfg, params)
		if err != nil {
			fatal(err)
		}
		printScenario(sc)
	}
}

// printScenario 打印一个场景全部 (或选定) 检查的编码
func printScenario(sc *scenario.Scenario) {
	for _, check := range sc.Checks {
		if *checkName != "" && check.Name != *checkName {
			continue
		}

		fmt.Printf("; %s/%s (%s)\n", sc.Kind, check.Name, check.Kind)
		decls := check.Query.Decls()
		for _, name := range decls.SymbolNames() {
			sort, _ := decls.SymbolSort(name)
			fmt.Printf("(declare-const %s %s)\n", name, sort)
		}
		for _, name := range decls.FuncNames() {
			fn, _ := decls.Func(name)
			fmt.Printf("(declare-fun %s (%s) %s)\n", name, fn.Domain[0], fn.Range)
		}
		for _, t := range check.Query.Assertions() {
			fmt.Printf("(assert %s)\n", t)
		}
		fmt.Println("(check-sat)")
		fmt.Println()
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(2)
}
