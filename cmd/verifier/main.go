package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"wxvisor/pkg/mmu"
	"wxvisor/pkg/report"
	"wxvisor/pkg/scenario"
	"wxvisor/pkg/smt"
	"wxvisor/pkg/types"
)

// 退出码: 0 = 全部检查求解完成 (sat/unsat/unknown都算),
// 1 = oracle不可用或求解硬错误, 2 = 配置错误
const (
	exitOK          = 0
	exitOracleError = 1
	exitConfigError = 2
)

// 命令行参数
var (
	configPath   = flag.String("config", "./config/verifier.yaml", "Configuration file path")
	scenarioName = flag.String("scenario", "all", "Scenario to verify (basic-paging, aliasing, single-level-wx, nested-wxvisor, all)")
	presetName   = flag.String("preset", "default", "Named address preset ("+strings.Join(scenario.PresetNames(), ", ")+")")
	vaFlag       = flag.String("va", "", "Pin VA (hex or decimal, overrides preset)")
	va1Flag      = flag.String("va1", "", "Pin alias VA1 (hex or decimal, overrides preset)")
	va2Flag      = flag.String("va2", "", "Pin alias VA2 (hex or decimal, overrides preset)")
	ipaFlag      = flag.String("ipa", "", "Pin IPA (hex or decimal, overrides preset)")
	paFlag       = flag.String("pa", "", "Pin PA (hex or decimal, overrides preset)")
	widthFlag    = flag.Int("width", 0, "Address width in bits (overrides config)")
	pageBitsFlag = flag.Int("page-bits", 0, "Page offset bits (overrides config)")
	timeoutFlag  = flag.String("timeout", "", "Solver timeout, e.g. 30s (overrides config)")
	format       = flag.String("format", "", "Output format (text, json)")
	outputPath   = flag.String("output", "", "Output file path (default: stdout)")
	verbose      = flag.Bool("v", false, "Enable verbose logging")
)

// fileConfig verifier.yaml 的结构; 命令行参数覆盖文件值
type fileConfig struct {
	Verifier struct {
		AddressWidth  int    `yaml:"address_width"`
		PageBits      int    `yaml:"page_bits"`
		SolverTimeout string `yaml:"solver_timeout"`
		Scenario      string `yaml:"scenario"`
		Preset        string `yaml:"preset"`
		Addresses     struct {
			VA  *types.FlexibleUint64 `yaml:"va"`
			VA1 *types.FlexibleUint64 `yaml:"va1"`
			VA2 *types.FlexibleUint64 `yaml:"va2"`
			IPA *types.FlexibleUint64 `yaml:"ipa"`
			PA  *types.FlexibleUint64 `yaml:"pa"`
		} `yaml:"addresses"`
		Output struct {
			Format string `yaml:"format"`
			Path   string `yaml:"path"`
		} `yaml:"output"`
	} `yaml:"verifier"`
}

func main() {
	flag.Parse()

	if *verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	// 加载配置文件, 失败时退回默认值
	fileCfg, err := loadConfig(*configPath)
	if err != nil {
		log.Printf("[Config] Failed to load config file, using defaults: %v", err)
		fileCfg = &fileConfig{}
	}

	mmuCfg, oracleCfg, params, kinds, outFormat, outPath, err := resolveOptions(fileCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitConfigError)
	}

	log.Printf("[Verifier] address width: %d, page bits: %d, solver timeout: %s",
		mmuCfg.AddressWidth, mmuCfg.PageBits, oracleCfg.SolverTimeout)

	factory := func() (smt.Oracle, error) {
		return smt.NewZ3Oracle(oracleCfg)
	}

	for _, kind := range kinds {
		log.Printf("[Verifier] Building scenario: %s", kind)
		sc, err := scenario.Build(kind, mmuCfg, params)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: build scenario %s: %v\n", kind, err)
			os.Exit(exitConfigError)
		}

		runReport, err := scenario.Run(sc, factory)
		if err != nil {
			if errors.Is(err, mmu.ErrConfig) || errors.Is(err, smt.ErrInvalidFormula) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(exitConfigError)
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitOracleError)
		}

		path := outPath
		if path != "" && len(kinds) > 1 {
			// 多场景写文件时按场景名区分
			ext := filepath.Ext(path)
			path = fmt.Sprintf("%s_%s%s", path[:len(path)-len(ext)], kind, ext)
		}
		if err := report.Save(runReport, outFormat, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: save report: %v\n", err)
			os.Exit(exitConfigError)
		}
	}

	os.Exit(exitOK)
}

// loadConfig 加载YAML配置文件
func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveOptions 合并配置文件与命令行参数 (命令行优先)
func resolveOptions(fileCfg *fileConfig) (*mmu.Config, *smt.OracleConfig, scenario.Params, []scenario.Kind, string, string, error) {
	v := fileCfg.Verifier

	mmuCfg := &mmu.Config{
		AddressWidth: v.AddressWidth,
		PageBits:     v.PageBits,
	}
	if *widthFlag != 0 {
		mmuCfg.AddressWidth = *widthFlag
	}
	if *pageBitsFlag != 0 {
		mmuCfg.PageBits = *pageBitsFlag
	}
	mmuCfg.MergeWithDefaults()

	oracleCfg := &smt.OracleConfig{
		SolverTimeout: v.SolverTimeout,
		Verbose:       *verbose,
	}
	if *timeoutFlag != "" {
		oracleCfg.SolverTimeout = *timeoutFlag
	}
	oracleCfg.MergeWithDefaults()

	// 预置参数 → 配置文件地址 → 命令行地址, 后者覆盖前者
	preset := *presetName
	if preset == "default" && v.Preset != "" {
		preset = v.Preset
	}
	params, err := scenario.Preset(preset)
	if err != nil {
		return nil, nil, scenario.Params{}, nil, "", "", err
	}
	applyAddr(&params.VA, v.Addresses.VA)
	applyAddr(&params.VA1, v.Addresses.VA1)
	applyAddr(&params.VA2, v.Addresses.VA2)
	applyAddr(&params.IPA, v.Addresses.IPA)
	applyAddr(&params.PA, v.Addresses.PA)
	if err := applyFlagAddr(&params.VA, *vaFlag); err != nil {
		return nil, nil, scenario.Params{}, nil, "", "", err
	}
	if err := applyFlagAddr(&params.VA1, *va1Flag); err != nil {
		return nil, nil, scenario.Params{}, nil, "", "", err
	}
	if err := applyFlagAddr(&params.VA2, *va2Flag); err != nil {
		return nil, nil, scenario.Params{}, nil, "", "", err
	}
	if err := applyFlagAddr(&params.IPA, *ipaFlag); err != nil {
		return nil, nil, scenario.Params{}, nil, "", "", err
	}
	if err := applyFlagAddr(&params.PA, *paFlag); err != nil {
		return nil, nil, scenario.Params{}, nil, "", "", err
	}

	name := *scenarioName
	if name == "all" && v.Scenario != "" && v.Scenario != "all" {
		name = v.Scenario
	}
	var kinds []scenario.Kind
	if name == "all" {
		kinds = scenario.AllKinds()
	} else {
		kind, err := scenario.ParseKind(name)
		if err != nil {
			return nil, nil, scenario.Params{}, nil, "", "", err
		}
		kinds = []scenario.Kind{kind}
	}

	outFormat := *format
	if outFormat == "" {
		outFormat = v.Output.Format
	}
	outPath := *outputPath
	if outPath == "" {
		outPath = v.Output.Path
	}

	return mmuCfg, oracleCfg, params, kinds, outFormat, outPath, nil
}

// applyAddr 用配置文件里的地址覆盖预置值
func applyAddr(dst **uint64, src *types.FlexibleUint64) {
	if src == nil {
		return
	}
	v := src.Value()
	*dst = &v
}

// applyFlagAddr 用命令行地址覆盖当前值
func applyFlagAddr(dst **uint64, raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := types.ParseFlexibleUint64(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", mmu.ErrConfig, err)
	}
	v := parsed.Value()
	*dst = &v
	return nil
}
