// Package types 定义基本类型
package types

// MessageType 消息类型
type MessageType int

// 定义WebSocket消息类型常量
const (
	WSTextMessage MessageType = iota
	WSBinaryMessage
)

// String 返回消息类型名称
func (t MessageType) String() string {
	switch t {
	case WSTextMessage:
		return "text"
	case WSBinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}

// ErrorMessage 识别失败时发送给客户端的文本消息
const ErrorMessage = "error"

// Response 识别结果响应
type Response struct {
	Result    []string `json:"result"`     // 已提交的片段，最后一个元素是当前的临时结果
	IsTalking bool     `json:"is_talking"` // 始终为true，预留给语音活动检测
}

// SessionStats 会话统计信息
type SessionStats struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Iterations int    `json:"iterations"`
	Committed  int    `json:"committed"`
	TailLen    int    `json:"tail_samples"`
}
