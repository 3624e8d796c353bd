package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FlexibleUint64 是一个可以从多种格式解析的 uint64 类型
// 配置文件与命令行里的地址 (VA/IPA/PA) 都用它承载
// 支持的格式:
// - 数字: 305418240
// - 十六进制字符串: "0x12345000"
// - 十进制字符串: "305418240"
type FlexibleUint64 struct {
	value uint64
}

// NewFlexibleUint64 创建一个新的 FlexibleUint64
func NewFlexibleUint64(val uint64) FlexibleUint64 {
	return FlexibleUint64{value: val}
}

// ParseFlexibleUint64 从字符串解析 (命令行地址参数用)
func ParseFlexibleUint64(s string) (FlexibleUint64, error) {
	v, err := parseScalar(s)
	if err != nil {
		return FlexibleUint64{}, err
	}
	return FlexibleUint64{value: v}, nil
}

// parseScalar 解析十六进制或十进制字符串
func parseScalar(s string) (uint64, error) {
	s = strings.TrimSpace(s)

	// 空字符串视为 0
	if s == "" || s == "0x" {
		return 0, nil
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		v, err := hexutil.DecodeUint64("0x" + strings.ToLower(digits))
		if err == nil {
			return v, nil
		}
		// hexutil只接受规范形式, 带前导零的写法 ("0x0123") 退回标准库解析
		v, serr := strconv.ParseUint(digits, 16, 64)
		if serr != nil {
			return 0, fmt.Errorf("无效的十六进制字符串: %s: %v", s, err)
		}
		return v, nil
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("无法解析十进制字符串: %s: %v", s, err)
	}
	return v, nil
}

// Value 返回 uint64 值
func (f FlexibleUint64) Value() uint64 {
	return f.value
}

// Uint64 返回 uint64 值 (Value 的别名，提供更好的可读性)
func (f FlexibleUint64) Uint64() uint64 {
	return f.value
}

// IsZero 检查值是否为 0
func (f FlexibleUint64) IsZero() bool {
	return f.value == 0
}

// String 返回十六进制字符串表示
func (f FlexibleUint64) String() string {
	return hexutil.EncodeUint64(f.value)
}

// UnmarshalJSON 实现 json.Unmarshaler 接口
func (f *FlexibleUint64) UnmarshalJSON(data []byte) error {
	// 尝试作为数字解析
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		val, err := strconv.ParseUint(num.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("无法解析数字: %v", err)
		}
		f.value = val
		return nil
	}

	// 尝试作为字符串解析
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("既不是数字也不是字符串: %v", err)
	}

	val, err := parseScalar(str)
	if err != nil {
		return err
	}
	f.value = val
	return nil
}

// MarshalJSON 实现 json.Marshaler 接口
// 序列化为十六进制字符串格式
func (f FlexibleUint64) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", f.String())), nil
}

// UnmarshalYAML 实现 yaml.v2 的 Unmarshaler 接口
// YAML配置里的地址同样接受数字/十六进制/十进制三种写法
func (f *FlexibleUint64) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var num uint64
	if err := unmarshal(&num); err == nil {
		f.value = num
		return nil
	}

	var str string
	if err := unmarshal(&str); err != nil {
		return fmt.Errorf("既不是数字也不是字符串: %v", err)
	}

	val, err := parseScalar(str)
	if err != nil {
		return err
	}
	f.value = val
	return nil
}

// MarshalYAML 实现 yaml.v2 的 Marshaler 接口
func (f FlexibleUint64) MarshalYAML() (interface{}, error) {
	return f.String(), nil
}
