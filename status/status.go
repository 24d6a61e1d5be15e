package status

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ServerStatus string

const (
	ServerStarting ServerStatus = "Starting"
	ServerRunning  ServerStatus = "Running"
	ServerStopping ServerStatus = "Stopping"
	ServerStopped  ServerStatus = "Stopped"
)

// String 返回服务状态文本。
func (s ServerStatus) String() string { return string(s) }

// ParseServerStatus 将文本解析为 ServerStatus。
// 参数：
// - v: 状态文本（Starting/Running/Stopping/Stopped）
// 返回：
// - ServerStatus: 解析结果
// - error: 未知状态时返回错误
func ParseServerStatus(v string) (ServerStatus, error) {
	switch strings.TrimSpace(v) {
	case string(ServerStarting):
		return ServerStarting, nil
	case string(ServerRunning):
		return ServerRunning, nil
	case string(ServerStopping):
		return ServerStopping, nil
	case string(ServerStopped):
		return ServerStopped, nil
	default:
		return "", fmt.Errorf("unknown ServerStatus: %q", v)
	}
}

// MarshalJSON 将 ServerStatus 编码为 JSON 字符串。
func (s ServerStatus) MarshalJSON() ([]byte, error) { return json.Marshal(string(s)) }

// UnmarshalJSON 从 JSON 字符串解码为 ServerStatus。
func (s *ServerStatus) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseServerStatus(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type StreamStatus string

const (
	StreamIdle      StreamStatus = "Idle"
	StreamStreaming StreamStatus = "Streaming"
	StreamStopped   StreamStatus = "Stopped"
)

// String 返回媒体流状态文本。
func (s StreamStatus) String() string { return string(s) }

// ParseStreamStatus 将文本解析为 StreamStatus。
// 参数：
// - v: 状态文本（Idle/Streaming/Stopped）
// 返回：
// - StreamStatus: 解析结果
// - error: 未知状态时返回错误
func ParseStreamStatus(v string) (StreamStatus, error) {
	switch strings.TrimSpace(v) {
	case string(StreamIdle):
		return StreamIdle, nil
	case string(StreamStreaming):
		return StreamStreaming, nil
	case string(StreamStopped):
		return StreamStopped, nil
	default:
		return "", fmt.Errorf("unknown StreamStatus: %q", v)
	}
}

// MarshalJSON 将 StreamStatus 编码为 JSON 字符串。
func (s StreamStatus) MarshalJSON() ([]byte, error) { return json.Marshal(string(s)) }

// UnmarshalJSON 从 JSON 字符串解码为 StreamStatus。
func (s *StreamStatus) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseStreamStatus(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
