package mmu

import (
	"errors"
	"fmt"
)

// ErrConfig 建模配置错误 (宽度/页位数/级数非法), 在任何约束构建之前拒绝
var ErrConfig = errors.New("invalid mmu configuration")

// Config 地址翻译模型配置
// AddressWidth 决定所有地址符号的位向量宽度; 地址是否越界/回绕
// 在选定宽度下由求解器语义决定, 这里不做额外处理
type Config struct {
	AddressWidth int `yaml:"address_width" json:"address_width"` // 地址位宽 [1, 64]
	PageBits     int `yaml:"page_bits" json:"page_bits"`         // 页内偏移位数 [1, width)
	Stages       int `yaml:"stages" json:"stages"`               // 翻译级数 {1, 2}
}

// DefaultConfig 返回默认配置: 32位地址, 4KB页, 两级翻译
func DefaultConfig() *Config {
	return &Config{
		AddressWidth: 32,
		PageBits:     12,
		Stages:       2,
	}
}

// MergeWithDefaults 合并用户配置与默认配置
func (c *Config) MergeWithDefaults() {
	defaults := DefaultConfig()

	if c.AddressWidth == 0 {
		c.AddressWidth = defaults.AddressWidth
	}
	if c.PageBits == 0 {
		c.PageBits = defaults.PageBits
	}
	if c.Stages == 0 {
		c.Stages = defaults.Stages
	}
}

// Validate 校验配置参数
func (c *Config) Validate() error {
	if c.AddressWidth < 1 || c.AddressWidth > 64 {
		return fmt.Errorf("%w: address width must be in [1, 64], got %d", ErrConfig, c.AddressWidth)
	}
	if c.PageBits < 1 || c.PageBits >= c.AddressWidth {
		return fmt.Errorf("%w: page bits must be in [1, %d), got %d", ErrConfig, c.AddressWidth, c.PageBits)
	}
	if c.Stages < 1 || c.Stages > 2 {
		return fmt.Errorf("%w: stages must be 1 or 2, got %d", ErrConfig, c.Stages)
	}
	return nil
}

// PageMask 页内偏移掩码 (例如 PageBits=12 时为 0xFFF)
func (c *Config) PageMask() uint64 {
	return (uint64(1) << uint(c.PageBits)) - 1
}

// MaxAddress 当前宽度下的最大地址值
func (c *Config) MaxAddress() uint64 {
	if c.AddressWidth >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(c.AddressWidth)) - 1
}
