package capture

import (
	"bytes"
	"fmt"
	stdimage "image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"parking-sign-server-go/src/core/image"
)

const (
	// MaxUploadWidth 客户端缩放的宽度上限，服务端仍会重新归一化
	MaxUploadWidth = 800
	// JPEGQuality 上传前重新编码的JPEG质量
	JPEGQuality = 70

	UploadFilename    = "capture.jpg"
	UploadContentType = "image/jpeg"

	DayOfWeekLayout = "Monday"
	DateLayout      = "1/2/2006"
	TimeLayout      = "3:04 PM"
)

// Payload 待上传的数据
type Payload struct {
	Image       []byte
	Filename    string
	ContentType string
	Width       int
	Height      int
	DayOfWeek   string
	Date        string
	Time        string
}

// Prepare 缩放到宽度不超过MaxUploadWidth并重新编码为JPEG，
// 时间字段在准备时刻而不是拍照时刻生成。
func Prepare(raw RawImage, now time.Time) (*Payload, error) {
	if len(raw.Data) == 0 {
		return nil, fmt.Errorf("照片数据为空")
	}

	img, format, err := stdimage.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return nil, fmt.Errorf("解码照片失败: %w", err)
	}

	bounds := img.Bounds()
	width, height := image.FitWithin(bounds.Dx(), bounds.Dy(), MaxUploadWidth, 0)
	if width != bounds.Dx() || height != bounds.Dy() {
		img = image.Resize(img, width, height)
	}

	data, err := image.EncodeJPEG(img, JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("重新编码照片(%s)失败: %w", format, err)
	}

	return &Payload{
		Image:       data,
		Filename:    UploadFilename,
		ContentType: UploadContentType,
		Width:       width,
		Height:      height,
		DayOfWeek:   now.Format(DayOfWeekLayout),
		Date:        now.Format(DateLayout),
		Time:        now.Format(TimeLayout),
	}, nil
}
