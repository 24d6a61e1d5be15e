package vehicle

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"rover-link/config"
	"rover-link/drive"
	rerrors "rover-link/errors"
	rlog "rover-link/log"
	"rover-link/protocol"
	"rover-link/status"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// batteryPlaceholder 是状态应答中的电量占位值（电量采集不在本核心范围内）。
const batteryPlaceholder = 100

// connContext 是一条指令连接的上下文。
// 写互斥保证状态应答不会与其它写入交错而破坏消息边界。
type connContext struct {
	conn     net.Conn
	id       string
	peerHost string

	wmu sync.Mutex
}

// writeLine 串行写入一行已编码消息。
// 参数：
// - b: 编码结果（含分隔符）
// 返回：
// - error: 写入失败原因
func (c *connContext) writeLine(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.conn.Write(b)
	return err
}

// Server 是车端指令通道服务：
// 接受 TCP 连接（每连接一个 goroutine），按行重组消息并分发，
// 并协调监听器、活跃连接与媒体环的统一停机。
type Server struct {
	cfg      config.Config
	ctrl     drive.Controller
	reg      *Registry
	streamer *Streamer

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]string
	st    status.ServerStatus

	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer 创建车端指令通道服务。
// 参数：
// - cfg: 全局配置
// - ctrl: 执行机构
// - reg: 媒体目标注册表
// - streamer: 媒体环（由本服务托管生命周期）
func NewServer(cfg config.Config, ctrl drive.Controller, reg *Registry, streamer *Streamer) *Server {
	return &Server{
		cfg:      cfg,
		ctrl:     ctrl,
		reg:      reg,
		streamer: streamer,
		conns:    make(map[net.Conn]string),
		st:       status.ServerStarting,
	}
}

// Start 启动监听并阻塞在接受循环中。
// 监听器被本端关闭（quit 指令或上层取消）时返回 nil，
// 其余接受错误记录后继续（与真实传输故障区分开）。
// 参数：
// - ctx: 上层取消上下文（信号停机）
// 返回：
// - error: 监听失败原因
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		cancel()
		return rerrors.Wrap(rerrors.CodeTransport, "tcp listen failed", err)
	}

	s.mu.Lock()
	s.ln = ln
	s.cancel = cancel
	s.st = status.ServerRunning
	s.mu.Unlock()

	rlog.With(logrus.Fields{"addr": addr, "status": "listen_ok"}).Info("指令通道开始监听")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.streamer.Run()
	}()

	go func() {
		<-ctx.Done()
		s.beginStop()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			rlog.With(logrus.Fields{"status": "accept_error"}).WithError(err).Warn("接受连接失败")
			continue
		}
		if s.connCount() >= s.cfg.Server.MaxConnections {
			rlog.With(logrus.Fields{"peer": conn.RemoteAddr().String(), "status": "conn_limit"}).Warn("连接数达到上限，拒绝新连接")
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Shutdown 请求全局停机（幂等）：任何指令连接上下文均可触达。
func (s *Server) Shutdown() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait 在限定时间内等待接受循环、全部连接与媒体环退出。
// 参数：
// - timeout: 联合等待上限（卡死的 I/O 不应拖住停机）
// 返回：
// - bool: 是否在限定时间内全部退出
func (s *Server) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.setStatus(status.ServerStopped)
		return true
	case <-time.After(timeout):
		rlog.With(logrus.Fields{"status": "shutdown_timeout"}).Warn("停机等待超时，放弃剩余任务")
		return false
	}
}

// Status 返回服务当前状态。
func (s *Server) Status() status.ServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// beginStop 执行一次性的停机动作：关闭监听器与全部活跃连接，停止媒体环。
func (s *Server) beginStop() {
	s.stopOnce.Do(func() {
		s.setStatus(status.ServerStopping)
		s.mu.Lock()
		ln := s.ln
		conns := make([]net.Conn, 0, len(s.conns))
		for c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		if ln != nil {
			_ = ln.Close()
		}
		for _, c := range conns {
			_ = c.Close()
		}
		s.streamer.Stop()
	})
}

// handleConn 处理单条指令连接：
// 字节累积进接收缓冲，反复取出完整消息并分发；
// 断连或读错误时关闭连接，若本连接持有媒体注册则一并注销。
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()

	cc := &connContext{conn: conn, id: uuid.NewString()}
	cc.peerHost, _, _ = net.SplitHostPort(conn.RemoteAddr().String())
	logger := rlog.With(logrus.Fields{"conn_id": cc.id, "peer": cc.peerHost})

	s.addConn(conn, cc.id)
	logger.Info("接受指令连接")

	defer func() {
		s.removeConn(conn)
		_ = conn.Close()
		if s.reg.ClearOwner(cc.id) {
			logger.Info("注册连接已断开，注销媒体目标")
		}
		logger.Info("指令连接关闭")
	}()

	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				msg, rest, derr := protocol.Next(buf)
				buf = rest
				if derr != nil {
					// 坏帧只丢一条消息，连接保持
					logger.WithError(derr).Warn("丢弃无法解析的消息")
					continue
				}
				if msg == nil {
					break
				}
				if werr := s.dispatch(cc, msg, logger); werr != nil {
					logger.WithError(werr).Warn("应答写入失败，关闭连接")
					return
				}
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Info("对端断开连接")
			case errors.Is(err, net.ErrClosed):
				logger.Debug("连接被本端关闭")
			default:
				logger.WithError(err).Warn("连接读取失败")
			}
			return
		}
	}
}

// dispatch 分发一条完整指令消息。
// 返回：
// - error: 仅当本连接的应答写入失败时返回（调用方应关闭连接）
func (s *Server) dispatch(cc *connContext, msg *protocol.Message, logger *logrus.Entry) error {
	switch msg.Cmd {
	case protocol.CmdRegisterVideo:
		if msg.VideoPort <= 0 || msg.VideoPort > 65535 {
			logger.WithField("video_port", msg.VideoPort).Warn("媒体端口越界，忽略注册")
			return nil
		}
		s.reg.Set(cc.id, Target{Host: cc.peerHost, Port: msg.VideoPort})
		logger.WithFields(logrus.Fields{"host": cc.peerHost, "video_port": msg.VideoPort}).Info("注册媒体目标")

	case protocol.CmdMove:
		s.ctrl.Apply(drive.MotionFromMessage(msg))

	case protocol.CmdStop:
		s.ctrl.Halt()

	case protocol.CmdStatus:
		st := s.ctrl.State()
		raw, err := protocol.EncodeStatus(protocol.Status{
			Battery:  batteryPlaceholder,
			Speed:    st.Speed,
			Steering: st.Steering,
		})
		if err != nil {
			logger.WithError(err).Error("状态应答编码失败")
			return nil
		}
		if werr := cc.writeLine(raw); werr != nil {
			return rerrors.Wrap(rerrors.CodeTransport, "write status response", werr)
		}

	case protocol.CmdQuit:
		logger.Info("收到退出指令，开始全局停机")
		s.Shutdown()

	default:
		logger.WithField("cmd", string(msg.Cmd)).Warn("未知指令，忽略")
	}
	return nil
}

// addConn 将连接加入活跃集合。
func (s *Server) addConn(conn net.Conn, id string) {
	s.mu.Lock()
	s.conns[conn] = id
	s.mu.Unlock()
}

// removeConn 将连接移出活跃集合（幂等）。
func (s *Server) removeConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// connCount 返回当前活跃连接数量。
func (s *Server) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// setStatus 更新服务状态。
func (s *Server) setStatus(st status.ServerStatus) {
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
}
