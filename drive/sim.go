package drive

import (
	"sync"

	rlog "rover-link/log"

	"github.com/sirupsen/logrus"
)

// Sim 是记录型执行机构：不接硬件，仅记录并回显最近一次运动意图。
// 用于开发环境与测试。
type Sim struct {
	mu    sync.Mutex
	state State
}

// NewSim 创建记录型执行机构。
func NewSim() *Sim { return &Sim{} }

// Apply 记录并应用一条运动意图。
// 参数：
// - m: 规范化运动意图
func (s *Sim) Apply(m Motion) {
	s.mu.Lock()
	if m.Direction == Stop {
		s.state = State{}
	} else {
		s.state = State{Speed: m.Speed, Steering: m.Steering}
	}
	st := s.state
	s.mu.Unlock()

	rlog.With(logrus.Fields{
		"direction": string(m.Direction),
		"speed":     st.Speed,
		"steering":  st.Steering,
	}).Info("模拟执行运动指令")
}

// Halt 应用零运动（停车）。
func (s *Sim) Halt() { s.Apply(Motion{Direction: Stop}) }

// State 返回最近一次应用后的执行状态快照。
func (s *Sim) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close 释放资源（记录型实现无资源可释放）。
func (s *Sim) Close() error { return nil }
