// Package consultation_status_enum 定义问诊状态枚举
package consultation_status_enum

// 问诊状态
// 状态转换单调：PENDING -> ACTIVE -> COMPLETED，CANCELLED 可从 PENDING/ACTIVE 到达
// 到达 COMPLETED/CANCELLED 后不可回退
const (
	PENDING   int8 = iota // 待接诊
	ACTIVE                // 进行中
	COMPLETED             // 已完成
	CANCELLED             // 已取消
)

// names 状态对外展示名，与前端协议中的字符串一致
var names = map[int8]string{
	PENDING:   "pending",
	ACTIVE:    "active",
	COMPLETED: "completed",
	CANCELLED: "cancelled",
}

// Name 返回状态的协议字符串
func Name(status int8) string {
	if n, ok := names[status]; ok {
		return n
	}
	return "unknown"
}

// IsTerminal 判断状态是否为终态
func IsTerminal(status int8) bool {
	return status == COMPLETED || status == CANCELLED
}
