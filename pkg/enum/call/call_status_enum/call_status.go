// Package call_status_enum 定义通话状态枚举
package call_status_enum

// 通话状态
// INITIATED -> ACTIVE -> ENDED，REJECTED 仅可从 INITIATED 到达
const (
	INITIATED int8 = iota // 已发起，等待接听
	ACTIVE                // 通话中
	ENDED                 // 已结束
	REJECTED              // 已拒绝
)

var names = map[int8]string{
	INITIATED: "initiated",
	ACTIVE:    "active",
	ENDED:     "ended",
	REJECTED:  "rejected",
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
	return status == ENDED || status == REJECTED
}
