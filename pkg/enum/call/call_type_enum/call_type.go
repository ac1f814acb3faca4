// Package call_type_enum 定义通话类型枚举
package call_type_enum

const (
	AUDIO int8 = iota // 语音通话
	VIDEO             // 视频通话
)

var names = map[int8]string{
	AUDIO: "audio",
	VIDEO: "video",
}

// Name 返回类型的协议字符串
func Name(t int8) string {
	if n, ok := names[t]; ok {
		return n
	}
	return "unknown"
}

// Parse 从协议字符串解析通话类型，未知类型按语音处理
func Parse(s string) int8 {
	if s == "video" {
		return VIDEO
	}
	return AUDIO
}
