package imgx

import (
	"bytes"
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// MaxWidth 是 relay 接受的最大缩放宽度。
const MaxWidth = 2048

// Resize 把图片等比缩放到宽度 width，并按原格式（JPEG/PNG/GIF）重新编码；其它格式输出 JPEG。
//
// 约束：
// - width<=0 或不小于原图宽度时原样返回输入（不放大）
// - 返回值 contentType 与输出字节一致
func Resize(data []byte, width int) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("图片为空")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", errors.New("图片尺寸无效")
	}
	if width <= 0 || width >= b.Dx() {
		return data, contentType(format), nil
	}
	if width > MaxWidth {
		width = MaxWidth
	}

	dst := imaging.Resize(img, width, 0, imaging.Lanczos)

	out := imaging.JPEG
	switch format {
	case "png":
		out = imaging.PNG
	case "gif":
		out = imaging.GIF
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, out, imaging.JPEGQuality(85)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), contentType(formatName(out)), nil
}

func formatName(f imaging.Format) string {
	switch f {
	case imaging.PNG:
		return "png"
	case imaging.GIF:
		return "gif"
	default:
		return "jpeg"
	}
}

func contentType(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
