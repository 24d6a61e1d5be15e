package operator

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	rerrors "rover-link/errors"
	rlog "rover-link/log"
	"rover-link/protocol"
)

// Client 是操作端指令通道客户端：维护一条到车端的 TCP 连接，
// 所有写入经由同一互斥串行化，保证并发调用不会交错破坏消息边界。
type Client struct {
	conn net.Conn

	wmu       sync.Mutex
	closeOnce sync.Once
}

// Dial 建立到车端的指令连接。
// 参数：
// - addr: 车端地址（host:port）
// - timeout: 建连超时
// 返回：
// - *Client: 客户端实例
// - error: 建连失败原因
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.CodeTransport, "dial command channel", err)
	}
	return &Client{conn: conn}, nil
}

// send 编码并串行写入一条指令消息。
func (c *Client) send(msg protocol.Message) error {
	raw, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.conn.Write(raw); err != nil {
		return rerrors.Wrap(rerrors.CodeTransport, "write command", err)
	}
	return nil
}

// RegisterVideo 声明本端媒体接收端口，车端随后向 (本端 IP, port) 投递媒体帧。
// 参数：
// - port: 媒体接收端口（1..65535）
func (c *Client) RegisterVideo(port int) error {
	if port <= 0 || port > 65535 {
		return rerrors.New(rerrors.CodeRegistration, "video port out of range")
	}
	return c.send(protocol.Message{Cmd: protocol.CmdRegisterVideo, VideoPort: port})
}

// Move 下发一条运动指令。越界值由车端钳制，本端不做校验。
// 参数：
// - direction: 方向（forward/backward）
// - speed: 速度
// - steering: 转向
func (c *Client) Move(direction string, speed, steering float64) error {
	return c.send(protocol.Message{
		Cmd:       protocol.CmdMove,
		Direction: direction,
		Speed:     speed,
		Steering:  steering,
	})
}

// Stop 下发停车指令。
func (c *Client) Stop() error {
	return c.send(protocol.Message{Cmd: protocol.CmdStop})
}

// RequestStatus 请求一次状态应答，应答经由 ReadStatus 回调送达。
func (c *Client) RequestStatus() error {
	return c.send(protocol.Message{Cmd: protocol.CmdStatus})
}

// Quit 请求车端全局停机。
func (c *Client) Quit() error {
	return c.send(protocol.Message{Cmd: protocol.CmdQuit})
}

// Close 关闭指令连接（幂等）。
func (c *Client) Close() error {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
	return nil
}

// ReadStatus 循环读取状态应答并逐条回调，直到连接关闭。
// 坏帧只丢一条应答并继续。对端断开或本端关闭返回 nil。
// 参数：
// - onStatus: 状态应答回调（在读取 goroutine 中调用）
// 返回：
// - error: 非预期的读取失败原因
func (c *Client) ReadStatus(onStatus func(protocol.Status)) error {
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := c.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				st, rest, derr := protocol.NextStatus(buf)
				buf = rest
				if derr != nil {
					rlog.L().WithError(derr).Warn("丢弃无法解析的状态应答")
					continue
				}
				if st == nil {
					break
				}
				onStatus(*st)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return rerrors.Wrap(rerrors.CodeTransport, "read status", err)
		}
	}
}
