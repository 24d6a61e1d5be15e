package camera

import (
	"bytes"
	"image/jpeg"
	"testing"

	"rover-link/config"
)

// TestSimSourceEncodeDecodable 验证合成帧经编码后可独立解码且分辨率正确。
func TestSimSourceEncodeDecodable(t *testing.T) {
	src := NewSimSource(640, 480)
	defer src.Close()

	img, err := src.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	data, err := EncodeJPEG(img, config.Resolution{Width: 320, Height: 240}, 50)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	b := decoded.Bounds()
	if b.Dx() != 320 || b.Dy() != 240 {
		t.Fatalf("bad output size: %dx%d", b.Dx(), b.Dy())
	}
}

// TestSimSourceClosed 验证关闭后采集返回错误而不是阻塞。
func TestSimSourceClosed(t *testing.T) {
	src := NewSimSource(0, 0)
	_ = src.Close()
	if _, err := src.Acquire(); err == nil {
		t.Fatalf("expected error after close")
	}
	// Close 幂等
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
}
