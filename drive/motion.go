package drive

import "rover-link/protocol"

type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Stop     Direction = "stop"
)

// Motion 是一条经过校验的运动意图。
// 不变式：Speed ∈ [0,1]，Steering ∈ [-1,1]，Direction 取值受限于上述常量。
type Motion struct {
	Direction Direction
	Speed     float64
	Steering  float64
}

// MotionFromMessage 将一条指令消息转换为规范化运动意图。
// 规则：
// - stop 指令无条件映射为零运动，忽略其余字段
// - 字段缺省视为 stop/0/0
// - 速度与转向静默钳制到合法区间（越界不报错）
// - 未知方向按 stop 处理（运动整体归零）
// 该转换永不失败，总是产出可用的运动意图。
// 参数：
// - msg: 已解析的指令消息
// 返回：
// - Motion: 规范化运动意图
func MotionFromMessage(msg *protocol.Message) Motion {
	if msg == nil || msg.Cmd == protocol.CmdStop {
		return Motion{Direction: Stop}
	}
	switch msg.Direction {
	case protocol.DirectionForward:
		return Motion{
			Direction: Forward,
			Speed:     clamp(msg.Speed, 0, 1),
			Steering:  clamp(msg.Steering, -1, 1),
		}
	case protocol.DirectionBackward:
		return Motion{
			Direction: Backward,
			Speed:     clamp(msg.Speed, 0, 1),
			Steering:  clamp(msg.Steering, -1, 1),
		}
	default:
		return Motion{Direction: Stop}
	}
}

// clamp 将 v 钳制到 [lo, hi] 区间。
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
