package vehicle

import (
	"errors"
	"image"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"rover-link/config"
	"rover-link/status"
)

// flakySource 是可注入失败的帧采集器。
type flakySource struct {
	fails    atomic.Int32
	acquires atomic.Int32
	closed   atomic.Bool
}

func (f *flakySource) Acquire() (image.Image, error) {
	f.acquires.Add(1)
	if f.fails.Add(-1) >= 0 {
		return nil, errors.New("capture glitch")
	}
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}

func (f *flakySource) Close() error {
	f.closed.Store(true)
	return nil
}

// flakyConn 是可注入失败的数据报发送端。
type flakyConn struct {
	fails atomic.Int32
	sends atomic.Int32
	last  atomic.Value
}

func (f *flakyConn) WriteToUDP(b []byte, addr *net.UDPAddr) (int, error) {
	f.sends.Add(1)
	f.last.Store(addr.String())
	if f.fails.Add(-1) >= 0 {
		return 0, errors.New("host unreachable")
	}
	return len(b), nil
}

func (f *flakyConn) Close() error { return nil }

// testVideoConfig 返回为测试调快节奏的媒体配置。
func testVideoConfig() config.VideoConfig {
	return config.VideoConfig{
		FrameRate:   100,
		Resolution:  "32x24",
		Quality:     50,
		IdleBackoff: 10 * time.Millisecond,
		MaxDatagram: config.ByteSize(64 * 1024),
	}
}

// waitFor 在超时时间内轮询等待条件成立。
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

// TestStreamerSurvivesFailures 验证单次取帧失败与单次发送失败都不会终止媒体环。
func TestStreamerSurvivesFailures(t *testing.T) {
	src := &flakySource{}
	src.fails.Store(1)
	conn := &flakyConn{}
	conn.fails.Store(1)

	reg := NewRegistry()
	reg.Set("c1", Target{Host: "10.0.0.5", Port: 6000})

	st, err := NewStreamer(testVideoConfig(), src, reg, conn)
	if err != nil {
		t.Fatal(err)
	}
	go st.Run()
	defer st.Stop()

	// 一次取帧失败 + 一次发送失败之后仍持续产生发送尝试
	waitFor(t, 2*time.Second, func() bool { return conn.sends.Load() >= 3 })
	if got := conn.last.Load(); got != "10.0.0.5:6000" {
		t.Fatalf("datagram addressed to %v", got)
	}
}

// TestStreamerIdleWithoutTarget 验证无注册目标时不发送、按退避间隔重试。
func TestStreamerIdleWithoutTarget(t *testing.T) {
	src := &flakySource{}
	conn := &flakyConn{}
	reg := NewRegistry()

	st, err := NewStreamer(testVideoConfig(), src, reg, conn)
	if err != nil {
		t.Fatal(err)
	}
	go st.Run()
	defer st.Stop()

	time.Sleep(100 * time.Millisecond)
	if conn.sends.Load() != 0 || src.acquires.Load() != 0 {
		t.Fatalf("unexpected activity without target: sends=%d acquires=%d", conn.sends.Load(), src.acquires.Load())
	}
	if st.Status() != status.StreamIdle {
		t.Fatalf("status=%v", st.Status())
	}

	// 目标出现后自动恢复
	reg.Set("c1", Target{Host: "127.0.0.1", Port: 6000})
	waitFor(t, 2*time.Second, func() bool { return conn.sends.Load() >= 1 })
}

// TestStreamerStopsWithinIteration 验证停止信号在至多一轮迭代内生效并释放采集器。
func TestStreamerStopsWithinIteration(t *testing.T) {
	src := &flakySource{}
	conn := &flakyConn{}
	reg := NewRegistry()
	reg.Set("c1", Target{Host: "127.0.0.1", Port: 6000})

	st, err := NewStreamer(testVideoConfig(), src, reg, conn)
	if err != nil {
		t.Fatal(err)
	}
	go st.Run()
	waitFor(t, 2*time.Second, func() bool { return conn.sends.Load() >= 1 })

	st.Stop()
	select {
	case <-st.Done():
	case <-time.After(time.Second):
		t.Fatalf("streamer did not stop in time")
	}
	if !src.closed.Load() {
		t.Fatalf("source not released")
	}
	if st.Status() != status.StreamStopped {
		t.Fatalf("status=%v", st.Status())
	}
	// Stop 幂等
	st.Stop()
}

// TestStreamerSkipsOversizeDatagram 验证超过数据报上限的帧被跳过且循环继续。
func TestStreamerSkipsOversizeDatagram(t *testing.T) {
	src := &flakySource{}
	conn := &flakyConn{}
	reg := NewRegistry()
	reg.Set("c1", Target{Host: "127.0.0.1", Port: 6000})

	cfg := testVideoConfig()
	cfg.MaxDatagram = config.ByteSize(16) // 任何 JPEG 都超限
	st, err := NewStreamer(cfg, src, reg, conn)
	if err != nil {
		t.Fatal(err)
	}
	go st.Run()
	defer st.Stop()

	waitFor(t, 2*time.Second, func() bool { return src.acquires.Load() >= 3 })
	if conn.sends.Load() != 0 {
		t.Fatalf("oversize frame was sent")
	}
}
