package camera

import (
	"bytes"
	"image"
	"image/jpeg"

	"rover-link/config"
	rerrors "rover-link/errors"

	"golang.org/x/image/draw"
)

// EncodeJPEG 将一帧图像缩放到固定输出分辨率并按给定质量编码为 JPEG。
// 每个编码结果都是一个可独立解码的完整图像，适合单数据报投递。
// 参数：
// - img: 原始帧
// - res: 输出分辨率
// - quality: JPEG 质量（1~100）
// 返回：
// - []byte: 编码结果
// - error: 编码失败原因
func EncodeJPEG(img image.Image, res config.Resolution, quality int) ([]byte, error) {
	if img == nil {
		return nil, rerrors.New(rerrors.CodeInternal, "nil frame")
	}
	dst := image.NewRGBA(image.Rect(0, 0, res.Width, res.Height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, rerrors.Wrap(rerrors.CodeInternal, "jpeg encode", err)
	}
	return buf.Bytes(), nil
}
