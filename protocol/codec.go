package protocol

import (
	"bytes"
	"encoding/json"

	rerrors "rover-link/errors"
)

// Delimiter 是指令通道的消息分隔字节。消息体为 JSON，JSON 编码结果中
// 不会出现裸换行，因此分隔符与消息内容天然不冲突。
const Delimiter = byte('\n')

// Encode 将一条指令消息编码为一行字节（JSON + 换行）。
// 参数：
// - msg: 待编码消息（cmd 必须非空）
// 返回：
// - []byte: 编码结果
// - error: cmd 为空或序列化失败原因
func Encode(msg Message) ([]byte, error) {
	if msg.Cmd == "" {
		return nil, rerrors.New(rerrors.CodeProtocol, "empty cmd")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.CodeProtocol, "marshal message", err)
	}
	return append(raw, Delimiter), nil
}

// EncodeStatus 将状态应答编码为一行字节（JSON + 换行）。
// 参数：
// - st: 状态快照
// 返回：
// - []byte: 编码结果
// - error: 序列化失败原因
func EncodeStatus(st Status) ([]byte, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.CodeProtocol, "marshal status", err)
	}
	return append(raw, Delimiter), nil
}

// Next 从累积缓冲中取出下一条完整指令消息。
// 约定：
// - 未找到分隔符时返回 (nil, buf, nil)，调用方需继续累积字节
// - 空行会被跳过
// - 分隔符存在但前缀不可解析时返回 CodeBadFrame 错误，剩余字节仍然可用
// 参数：
// - buf: 累积缓冲（可能包含零条、一条或多条消息）
// 返回：
// - *Message: 解析出的消息（可能为 nil）
// - []byte: 未消费的剩余字节
// - error: 单条消息解析失败原因
func Next(buf []byte) (*Message, []byte, error) {
	for {
		i := bytes.IndexByte(buf, Delimiter)
		if i < 0 {
			return nil, buf, nil
		}
		line := bytes.TrimSpace(buf[:i])
		buf = buf[i+1:]
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, buf, rerrors.Wrap(rerrors.CodeBadFrame, "unmarshal message", err)
		}
		if msg.Cmd == "" {
			return nil, buf, rerrors.New(rerrors.CodeProtocol, "missing cmd")
		}
		return &msg, buf, nil
	}
}

// NextStatus 从累积缓冲中取出下一条状态应答（操作端使用）。
// 约定与 Next 一致：无分隔符返回 (nil, buf, nil)，坏帧返回 CodeBadFrame。
// 参数：
// - buf: 累积缓冲
// 返回：
// - *Status: 解析出的状态（可能为 nil）
// - []byte: 未消费的剩余字节
// - error: 单条应答解析失败原因
func NextStatus(buf []byte) (*Status, []byte, error) {
	for {
		i := bytes.IndexByte(buf, Delimiter)
		if i < 0 {
			return nil, buf, nil
		}
		line := bytes.TrimSpace(buf[:i])
		buf = buf[i+1:]
		if len(line) == 0 {
			continue
		}
		var st Status
		if err := json.Unmarshal(line, &st); err != nil {
			return nil, buf, rerrors.Wrap(rerrors.CodeBadFrame, "unmarshal status", err)
		}
		return &st, buf, nil
	}
}
