// Package sender_role_enum 定义消息发送方角色枚举
package sender_role_enum

const (
	PATIENT int8 = iota // 患者
	DOCTOR              // 医生
)

var names = map[int8]string{
	PATIENT: "patient",
	DOCTOR:  "doctor",
}

// Name 返回角色的协议字符串
func Name(role int8) string {
	if n, ok := names[role]; ok {
		return n
	}
	return "unknown"
}
