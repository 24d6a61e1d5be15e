package camera

import (
	"image"
	"image/color"
	"sync"

	rerrors "rover-link/errors"
)

// Source 是帧采集器的能力接口。
// 约定：
// - Acquire 返回一帧原始图像；单次采集失败应返回错误而不是阻塞
// - Close 释放采集设备，Close 之后 Acquire 返回 CodeUnavailable
type Source interface {
	Acquire() (image.Image, error)
	Close() error
}

// SimSource 是合成帧采集器：生成带帧序号的移动渐变测试图，
// 用于无摄像头环境下打通媒体链路。
type SimSource struct {
	mu     sync.Mutex
	frame  int
	closed bool
	bounds image.Rectangle
}

// NewSimSource 创建合成帧采集器。
// 参数：
// - width/height: 原始帧尺寸
func NewSimSource(width, height int) *SimSource {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	return &SimSource{bounds: image.Rect(0, 0, width, height)}
}

// Acquire 合成一帧测试图。
// 返回：
// - image.Image: 本帧图像
// - error: 采集器已关闭
func (s *SimSource) Acquire() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, rerrors.New(rerrors.CodeUnavailable, "source closed")
	}
	s.frame++
	img := image.NewRGBA(s.bounds)
	shift := s.frame % 256
	for y := s.bounds.Min.Y; y < s.bounds.Max.Y; y++ {
		for x := s.bounds.Min.X; x < s.bounds.Max.X; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x + shift) & 0xff),
				G: uint8((y + shift) & 0xff),
				B: uint8(shift),
				A: 0xff,
			})
		}
	}
	return img, nil
}

// Close 关闭采集器（幂等）。
func (s *SimSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
