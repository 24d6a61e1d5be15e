package operator

import (
	"context"
	"math"
	"time"

	"rover-link/config"
	rlog "rover-link/log"
	"rover-link/protocol"

	"github.com/sirupsen/logrus"
)

// Intent 是操作端输入设备产出的原始运动意图。
type Intent struct {
	Direction string
	Speed     float64
	Steering  float64
}

// Input 抽象操作端输入设备（手柄、键盘等）。Sample 返回当前意图快照，不阻塞。
type Input interface {
	Sample() Intent
}

// Sender 以固定节奏轮询输入并下发运动指令：
// 意图相对上次已发送值变化超过阈值时立即发送，未变化时按最小间隔保活重发，
// 退出前必发一条停车指令，避免车端带着旧速度失联。
type Sender struct {
	client *Client
	in     Input

	poll    time.Duration
	minSend time.Duration
	delta   float64
}

// NewSender 创建运动指令发送器。
// 参数：
// - cfg: 操作端配置（轮询间隔、最小发送间隔、变化阈值）
// - client: 指令通道客户端
// - in: 输入设备
func NewSender(cfg config.OperatorSection, client *Client, in Input) *Sender {
	return &Sender{
		client:  client,
		in:      in,
		poll:    cfg.PollInterval,
		minSend: cfg.MinSendInterval,
		delta:   cfg.DeltaThreshold,
	}
}

// Run 执行轮询发送循环，直到上下文取消。
// 参数：
// - ctx: 取消上下文
// 返回：
// - error: 指令发送失败原因（连接已不可用）
func (s *Sender) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	defer func() {
		if err := s.client.Stop(); err != nil {
			rlog.L().WithError(err).Warn("退出前停车指令发送失败")
		}
	}()

	var last Intent
	var lastSent time.Time
	sentAny := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		cur := s.in.Sample()
		if sentAny && !s.changed(last, cur) && time.Since(lastSent) < s.minSend {
			continue
		}
		if err := s.sendIntent(cur); err != nil {
			return err
		}
		last = cur
		lastSent = time.Now()
		sentAny = true
	}
}

// changed 判断意图相对上次发送是否产生了值得下发的变化。
func (s *Sender) changed(prev, cur Intent) bool {
	if prev.Direction != cur.Direction {
		return true
	}
	return math.Abs(prev.Speed-cur.Speed) > s.delta ||
		math.Abs(prev.Steering-cur.Steering) > s.delta
}

// sendIntent 将一条意图映射为 move 或 stop 指令下发。
func (s *Sender) sendIntent(it Intent) error {
	if it.Direction == "" || it.Direction == protocol.DirectionStop {
		return s.client.Stop()
	}
	if err := s.client.Move(it.Direction, it.Speed, it.Steering); err != nil {
		return err
	}
	rlog.With(logrus.Fields{
		"direction": it.Direction,
		"speed":     it.Speed,
		"steering":  it.Steering,
	}).Debug("下发运动指令")
	return nil
}
