package operator

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"rover-link/config"
	rlog "rover-link/log"
	"rover-link/protocol"
)

// stubInput 是可随时改值的输入设备替身。
type stubInput struct {
	v atomic.Value
}

func (s *stubInput) set(it Intent) { s.v.Store(it) }

func (s *stubInput) Sample() Intent {
	it, _ := s.v.Load().(Intent)
	return it
}

// stubVehicle 是车端替身：接受一条指令连接，逐条解析收到的消息，
// 并允许测试向该连接写入应答字节。
type stubVehicle struct {
	addr string
	msgs chan protocol.Message
	conn chan net.Conn
}

func startStubVehicle(t *testing.T) *stubVehicle {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Logging.Output = "console"
	cfg.Logging.Format = "text"
	_ = rlog.Init(cfg.Logging)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	sv := &stubVehicle{
		addr: ln.Addr().String(),
		msgs: make(chan protocol.Message, 64),
		conn: make(chan net.Conn, 1),
	}
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		sv.conn <- c
		var buf []byte
		chunk := make([]byte, 4096)
		for {
			n, err := c.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
				for {
					msg, rest, derr := protocol.Next(buf)
					buf = rest
					if derr != nil {
						continue
					}
					if msg == nil {
						break
					}
					sv.msgs <- *msg
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return sv
}

// recvMsg 在超时时间内等待下一条消息。
func recvMsg(t *testing.T, sv *stubVehicle, d time.Duration) protocol.Message {
	t.Helper()
	select {
	case msg := <-sv.msgs:
		return msg
	case <-time.After(d):
		t.Fatalf("no message within %v", d)
		return protocol.Message{}
	}
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout")
}

// TestSenderDeltaFilter 验证低于阈值的意图变化不触发发送，
// 超过阈值立即发送，取消时必发一条停车指令。
func TestSenderDeltaFilter(t *testing.T) {
	sv := startStubVehicle(t)
	client, err := Dial(sv.addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	in := &stubInput{}
	in.set(Intent{Direction: protocol.DirectionForward, Speed: 0.2})

	cfg := config.OperatorSection{
		PollInterval:    5 * time.Millisecond,
		MinSendInterval: time.Hour, // 本用例只看变化触发
		DeltaThreshold:  0.05,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = NewSender(cfg, client, in).Run(ctx)
		close(done)
	}()

	first := recvMsg(t, sv, time.Second)
	if first.Cmd != protocol.CmdMove || first.Speed != 0.2 {
		t.Fatalf("first message %+v", first)
	}

	// 低于阈值的变化不触发
	in.set(Intent{Direction: protocol.DirectionForward, Speed: 0.23})
	select {
	case msg := <-sv.msgs:
		t.Fatalf("unexpected send for sub-threshold change: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}

	// 超过阈值立即触发
	in.set(Intent{Direction: protocol.DirectionForward, Speed: 0.5})
	second := recvMsg(t, sv, time.Second)
	if second.Cmd != protocol.CmdMove || second.Speed != 0.5 {
		t.Fatalf("second message %+v", second)
	}

	// 取消后必发停车
	cancel()
	<-done
	last := recvMsg(t, sv, time.Second)
	if last.Cmd != protocol.CmdStop {
		t.Fatalf("expected trailing stop, got %+v", last)
	}
}

// TestSenderKeepaliveResend 验证意图不变时仍按最小间隔保活重发。
func TestSenderKeepaliveResend(t *testing.T) {
	sv := startStubVehicle(t)
	client, err := Dial(sv.addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	in := &stubInput{}
	in.set(Intent{Direction: protocol.DirectionForward, Speed: 0.3})

	cfg := config.OperatorSection{
		PollInterval:    5 * time.Millisecond,
		MinSendInterval: 20 * time.Millisecond,
		DeltaThreshold:  10, // 本用例只看保活重发
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewSender(cfg, client, in).Run(ctx) }()

	waitFor(t, time.Second, func() bool { return len(sv.msgs) >= 3 })
}

// TestClientStatusStream 验证状态应答流的读取：跨写入边界重组、坏帧跳过、
// 对端断开时正常返回。
func TestClientStatusStream(t *testing.T) {
	sv := startStubVehicle(t)
	client, err := Dial(sv.addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.RequestStatus(); err != nil {
		t.Fatal(err)
	}
	if msg := recvMsg(t, sv, time.Second); msg.Cmd != protocol.CmdStatus {
		t.Fatalf("got %+v", msg)
	}

	got := make(chan protocol.Status, 8)
	readDone := make(chan error, 1)
	go func() {
		readDone <- client.ReadStatus(func(st protocol.Status) { got <- st })
	}()

	conn := <-sv.conn
	// 第一条应答拆成两次写入，夹一条坏帧，再跟第二条应答
	if _, err := conn.Write([]byte(`{"battery":100,`)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := conn.Write([]byte("\"speed\":0.5,\"steering\":0}\nnot json\n{\"battery\":100,\"speed\":0,\"steering\":0.2}\n")); err != nil {
		t.Fatal(err)
	}

	first := <-got
	if first.Battery != 100 || first.Speed != 0.5 {
		t.Fatalf("first status %+v", first)
	}
	second := <-got
	if second.Steering != 0.2 {
		t.Fatalf("second status %+v", second)
	}

	_ = conn.Close()
	if err := <-readDone; err != nil {
		t.Fatalf("read loop error: %v", err)
	}
}

// countingDisplay 统计收到的帧数。
type countingDisplay struct {
	shown atomic.Int64
}

func (d *countingDisplay) Show(image.Image) { d.shown.Add(1) }

// TestReceiverDropsUndecodable 验证无法解码的数据报被丢弃且不影响后续帧。
func TestReceiverDropsUndecodable(t *testing.T) {
	disp := &countingDisplay{}
	r, err := NewReceiver(0, disp)
	if err != nil {
		t.Fatal(err)
	}
	go r.Run()

	sender, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: r.Port()})
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	var frame bytes.Buffer
	if err := jpeg.Encode(&frame, image.NewRGBA(image.Rect(0, 0, 32, 24)), nil); err != nil {
		t.Fatal(err)
	}

	if _, err := sender.Write([]byte("definitely not a jpeg")); err != nil {
		t.Fatal(err)
	}
	if _, err := sender.Write(frame.Bytes()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return r.Frames() == 1 && r.Dropped() >= 1 && disp.shown.Load() == 1
	})

	r.Stop()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("receiver did not stop")
	}
	// Stop 幂等
	r.Stop()
}
