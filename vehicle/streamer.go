package vehicle

import (
	"net"
	"sync"
	"time"

	"rover-link/camera"
	"rover-link/config"
	rlog "rover-link/log"
	"rover-link/status"

	"github.com/sirupsen/logrus"
)

// PacketConn 抽象媒体通道的数据报发送端（*net.UDPConn 天然满足）。
type PacketConn interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
	Close() error
}

// Streamer 是独立于任何单条指令连接的长驻媒体环：
// 反复从采集器取帧、缩放编码为 JPEG，并以单数据报投递给注册表中
// 当前的媒体目标。采集、编码或发送失败只跳过本轮迭代，不终止循环，
// 也不清除注册表——目标恢复可达后链路自愈。
type Streamer struct {
	src  camera.Source
	reg  *Registry
	conn PacketConn

	res         config.Resolution
	quality     int
	interval    time.Duration
	idleBackoff time.Duration
	maxDatagram int64

	mu sync.Mutex
	st status.StreamStatus

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewStreamer 创建媒体环。
// 参数：
// - cfg: 媒体配置（帧率、分辨率、质量、空闲退避、数据报上限）
// - src: 帧采集器（媒体环退出前负责释放）
// - reg: 媒体目标注册表
// - conn: 数据报发送端
// 返回：
// - *Streamer: 媒体环实例
// - error: 配置解析失败原因
func NewStreamer(cfg config.VideoConfig, src camera.Source, reg *Registry, conn PacketConn) (*Streamer, error) {
	res, err := config.ParseResolution(cfg.Resolution)
	if err != nil {
		return nil, err
	}
	return &Streamer{
		src:         src,
		reg:         reg,
		conn:        conn,
		res:         res,
		quality:     cfg.Quality,
		interval:    time.Duration(float64(time.Second) / cfg.FrameRate),
		idleBackoff: cfg.IdleBackoff,
		maxDatagram: cfg.MaxDatagram.Int64(),
		st:          status.StreamIdle,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Run 执行媒体环主循环，直到 Stop 被调用。
// 每轮迭代顶部检查停止信号；退出前释放帧采集器。
func (v *Streamer) Run() {
	defer func() {
		_ = v.src.Close()
		v.setStatus(status.StreamStopped)
		close(v.doneCh)
		rlog.With(logrus.Fields{"status": "stream_stopped"}).Info("媒体环已退出")
	}()

	for {
		select {
		case <-v.stopCh:
			return
		default:
		}

		target, ok := v.reg.Get()
		if !ok {
			v.setStatus(status.StreamIdle)
			if !v.sleep(v.idleBackoff) {
				return
			}
			continue
		}

		start := time.Now()
		sent := v.relayOnce(target)
		if sent {
			v.setStatus(status.StreamStreaming)
		}

		if d := v.interval - time.Since(start); d > 0 {
			if !v.sleep(d) {
				return
			}
		}
	}
}

// relayOnce 执行一轮采集-编码-发送。任何一步失败都只放弃本帧。
// 参数：
// - target: 本轮的媒体目标
// 返回：
// - bool: 是否尝试了发送
func (v *Streamer) relayOnce(target Target) bool {
	img, err := v.src.Acquire()
	if err != nil {
		rlog.With(logrus.Fields{"status": "acquire_error"}).WithError(err).Debug("取帧失败，跳过本帧")
		return false
	}
	data, err := camera.EncodeJPEG(img, v.res, v.quality)
	if err != nil {
		rlog.With(logrus.Fields{"status": "encode_error"}).WithError(err).Warn("帧编码失败，跳过本帧")
		return false
	}
	if v.maxDatagram > 0 && int64(len(data)) > v.maxDatagram {
		rlog.With(logrus.Fields{
			"status": "datagram_oversize",
			"size":   len(data),
			"limit":  v.maxDatagram,
		}).Warn("帧超过数据报上限，跳过本帧")
		return false
	}
	if _, err := v.conn.WriteToUDP(data, target.UDPAddr()); err != nil {
		rlog.With(logrus.Fields{
			"status": "send_error",
			"host":   target.Host,
			"port":   target.Port,
		}).WithError(err).Warn("帧发送失败，保留注册目标等待恢复")
	}
	return true
}

// Stop 请求媒体环停止（幂等）。循环会在至多一轮迭代内退出。
func (v *Streamer) Stop() {
	v.stopOnce.Do(func() { close(v.stopCh) })
}

// Done 返回媒体环退出完成信号。
func (v *Streamer) Done() <-chan struct{} { return v.doneCh }

// Status 返回媒体环当前状态。
func (v *Streamer) Status() status.StreamStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.st
}

// setStatus 更新媒体环状态。
func (v *Streamer) setStatus(st status.StreamStatus) {
	v.mu.Lock()
	v.st = st
	v.mu.Unlock()
}

// sleep 可被停止信号打断的休眠。
// 返回：
// - bool: true 表示休眠完成，false 表示收到停止信号
func (v *Streamer) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-v.stopCh:
		return false
	case <-t.C:
		return true
	}
}
