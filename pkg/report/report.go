package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wxvisor/pkg/mmu"
	"wxvisor/pkg/scenario"
)

// Render 把运行报告渲染成给定格式
// text格式每个检查一行verdict (sat/unsat/unknown), 后随解释与见证;
// json格式原样序列化报告DTO (地址已是0x十六进制字符串)
func Render(r *scenario.Report, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return renderText(r), nil
	case "json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal report: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", mmu.ErrConfig, format)
	}
}

// renderText 人类可读的报告
func renderText(r *scenario.Report) []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "scenario: %s (address width %d)\n", r.Scenario, r.AddressWidth)
	for _, check := range r.Checks {
		fmt.Fprintf(&sb, "\n[%s] %s\n", check.Kind, check.Name)
		fmt.Fprintf(&sb, "%s\n", check.Result)
		fmt.Fprintf(&sb, "  %s\n", check.Interpretation)
		if check.Error != "" {
			fmt.Fprintf(&sb, "  reason: %s\n", check.Error)
		}
		for _, a := range check.Witness {
			fmt.Fprintf(&sb, "  %s = %s\n", a.Name, a.Value)
		}
	}
	fmt.Fprintf(&sb, "\ntotal solve time: %v\n", r.Duration)

	return []byte(sb.String())
}

// Save 渲染并写出报告; path为空时写到标准输出
func Save(r *scenario.Report, format, path string) error {
	data, err := Render(r, format)
	if err != nil {
		return err
	}

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
