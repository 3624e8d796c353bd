package scenario

import (
	"fmt"
	"strings"

	"wxvisor/pkg/mmu"
)

// ==================== 场景类型 ====================

// Kind 场景枚举: 四个理论共用一套编码骨架, 只在声明的空间/级数/检查上不同
type Kind int

const (
	BasicPaging   Kind = iota // 单级翻译的基本映射
	Aliasing                  // 单级翻译 + VA别名
	SingleLevelWX             // 单级翻译 + W^X策略
	NestedWXVisor             // 两级翻译 (WXvisor) + W^X + 别名
)

var kindNames = []string{"basic-paging", "aliasing", "single-level-wx", "nested-wxvisor"}

// String 返回场景名
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// AllKinds 按定义顺序返回全部场景
func AllKinds() []Kind {
	return []Kind{BasicPaging, Aliasing, SingleLevelWX, NestedWXVisor}
}

// ParseKind 按名字解析场景; 未知名字是配置错误
func ParseKind(name string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range kindNames {
		if n == key {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown scenario %q", mmu.ErrConfig, name)
}

// ==================== 检查类型 ====================

// CheckKind 查询的提法
// 两种提法都通过check-sat回答, 但verdict的含义相反, 必须逐检查注明:
//   - 存在性: 断言场景本身, sat = 存在一致的配置 (给出见证)
//   - 反证式: 断言性质的否定, unsat = 性质成立, sat = 找到反例
type CheckKind int

const (
	CheckSatisfiable CheckKind = iota // 存在性查询
	CheckRefutation                   // 反证式查询
)

// String 返回检查类型名
func (ck CheckKind) String() string {
	names := []string{"existence", "refutation"}
	if int(ck) < len(names) {
		return names[ck]
	}
	return "unknown"
}

// ==================== 参数与预置 ====================

// Params 场景的可选地址钉入
// 留空的地址由求解器自由选择; 钉入值超出地址宽度在构建时报配置错误
type Params struct {
	VA  *uint64 `json:"va,omitempty"`
	VA1 *uint64 `json:"va1,omitempty"`
	VA2 *uint64 `json:"va2,omitempty"`
	IPA *uint64 `json:"ipa,omitempty"`
	PA  *uint64 `json:"pa,omitempty"`
}

// addr 便于写预置表的指针字面量
func addr(v uint64) *uint64 {
	return &v
}

// presets 命名参数组
// default使用原始测试向量; stage-override是"第一级放行第二级拒绝"
// 走查例子的地址 (VA=0x1000, IPA=0x5000, PA=0x9000)
var presets = map[string]Params{
	"default": {
		VA:  addr(0x12345000),
		VA1: addr(0x23456000),
	},
	"stage-override": {
		VA:  addr(0x1000),
		IPA: addr(0x5000),
		PA:  addr(0x9000),
	},
}

// Preset 按名字查预置参数
func Preset(name string) (Params, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "default"
	}
	p, ok := presets[key]
	if !ok {
		return Params{}, fmt.Errorf("%w: unknown preset %q", mmu.ErrConfig, name)
	}
	return p, nil
}

// PresetNames 返回全部预置名 (字典序)
func PresetNames() []string {
	return []string{"default", "stage-override"}
}

// ==================== 场景与检查 ====================

// Check 一次独立的可满足性检查: 完整构建好的查询加上其提法
type Check struct {
	Name  string
	Kind  CheckKind
	Query *Query
}

// Scenario 选定场景下构建完成的检查集合
type Scenario struct {
	Kind   Kind
	Config *mmu.Config
	Checks []*Check
}
