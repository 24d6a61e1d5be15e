package drive

import (
	"fmt"

	"rover-link/config"
)

// State 是最近一次已下发运动意图对应的执行状态快照。
// Speed 为幅值（0~1），方向信息由 H 桥极性承载，不参与状态上报。
type State struct {
	Speed    float64
	Steering float64
}

// Controller 是执行机构的能力接口。
// 约定：
// - Apply/Halt 只由指令分发路径调用；State 可被状态应答路径并发读取
// - 实现必须自行保证内部状态的并发安全
type Controller interface {
	Apply(m Motion)
	Halt()
	State() State
	Close() error
}

// New 依据配置选择执行机构实现（构造期决定，不做运行时探测回退）。
// 参数：
// - cfg: 驱动配置（mode: sim | l298n）
// 返回：
// - Controller: 执行机构实例
// - error: 未知 mode
func New(cfg config.DriveConfig) (Controller, error) {
	switch cfg.Mode {
	case "sim":
		return NewSim(), nil
	case "l298n":
		return NewL298N(cfg.L298N), nil
	default:
		return nil, fmt.Errorf("unknown drive mode: %q", cfg.Mode)
	}
}
