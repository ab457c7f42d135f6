// Package payload 将请求行换算为字节数，并生成应答用的填充字节
package payload

import "math"

// Convert 支持的单位符号
const (
	UnitB  = "B"
	UnitKB = "KB"
	UnitMB = "MB"
	UnitGB = "GB"
)

// AllUnits 全部单位，从大到小
var AllUnits = []string{UnitGB, UnitMB, UnitKB, UnitB}

var multipliers = map[string]int64{
	UnitB:  1,
	UnitKB: 1 << 10,
	UnitMB: 1 << 20,
	UnitGB: 1 << 30,
}

// Convert 将 magnitude 按单位换算为字节数，单位区分大小写
// 未知单位、负数以及溢出 int64 的结果均返回 0，调用方视为无效请求
func Convert(unit string, magnitude int64) int64 {
	m, ok := multipliers[unit]
	if !ok || magnitude < 0 {
		return 0
	}
	if magnitude > math.MaxInt64/m {
		return 0
	}
	return magnitude * m
}

// KnownUnit 是否为支持的单位
func KnownUnit(unit string) bool {
	_, ok := multipliers[unit]
	return ok
}
