package operator

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"net"
	"sync"
	"sync/atomic"

	rerrors "rover-link/errors"
	rlog "rover-link/log"

	"github.com/sirupsen/logrus"
)

// Display 消费解码后的媒体帧（渲染窗口、录像落盘等）。
type Display interface {
	Show(image.Image)
}

// Receiver 绑定媒体端口接收 JPEG 数据报。每个数据报是一帧完整图像，
// 独立解码；无法解码的数据报直接丢弃，不影响后续帧。
type Receiver struct {
	conn *net.UDPConn
	disp Display

	frames  atomic.Int64
	dropped atomic.Int64

	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewReceiver 创建并绑定媒体接收端。
// 参数：
// - port: 本地媒体端口（0 表示随机）
// - disp: 帧消费端（可为 nil，仅统计）
// 返回：
// - *Receiver: 接收端实例
// - error: 绑定失败原因
func NewReceiver(port int, disp Display) (*Receiver, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, rerrors.Wrap(rerrors.CodeTransport, "bind media port", err)
	}
	return &Receiver{
		conn:   conn,
		disp:   disp,
		doneCh: make(chan struct{}),
	}, nil
}

// Port 返回实际绑定的媒体端口。
func (r *Receiver) Port() int {
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

// Run 执行接收循环，直到 Stop 被调用。
func (r *Receiver) Run() {
	defer close(r.doneCh)
	buf := make([]byte, 64*1024)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				rlog.With(logrus.Fields{"status": "recv_stopped"}).Info("媒体接收端已退出")
				return
			}
			rlog.L().WithError(err).Warn("媒体数据报读取失败")
			continue
		}
		img, derr := jpeg.Decode(bytes.NewReader(buf[:n]))
		if derr != nil {
			r.dropped.Add(1)
			rlog.L().WithError(derr).Debug("丢弃无法解码的媒体数据报")
			continue
		}
		r.frames.Add(1)
		if r.disp != nil {
			r.disp.Show(img)
		}
	}
}

// Stop 关闭媒体接收端（幂等）。
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() { _ = r.conn.Close() })
}

// Done 返回接收循环退出完成信号。
func (r *Receiver) Done() <-chan struct{} { return r.doneCh }

// Frames 返回累计成功解码的帧数。
func (r *Receiver) Frames() int64 { return r.frames.Load() }

// Dropped 返回累计丢弃的数据报数。
func (r *Receiver) Dropped() int64 { return r.dropped.Load() }
