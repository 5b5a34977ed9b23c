package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"parking-sign-server-go/src/configs"
	"parking-sign-server-go/src/core/utils"
)

func newTestProcessor(t testing.TB) *ImageProcessor {
	t.Helper()
	config, err := configs.Parse(nil)
	if err != nil {
		t.Fatalf("configs.Parse error = %v", err)
	}
	return NewImageProcessor(config, utils.NewConsoleLogger("info", nil))
}

func testPicture(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y += 7 {
		for x := 0; x < width; x += 7 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	return img
}

func testJPEG(t testing.TB, width, height int) []byte {
	t.Helper()
	data, err := EncodeJPEG(testPicture(width, height), 80)
	if err != nil {
		t.Fatalf("EncodeJPEG error = %v", err)
	}
	return data
}

func testPNG(t testing.TB, width, height int) []byte {
	t.Helper()
	data, err := EncodePNG(testPicture(width, height))
	if err != nil {
		t.Fatalf("EncodePNG error = %v", err)
	}
	return data
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name                string
		width, height       int
		maxWidth, maxHeight int
		wantW, wantH        int
	}{
		{name: "竖图缩到高度上限", width: 2000, height: 3000, maxWidth: 1024, maxHeight: 1024, wantW: 683, wantH: 1024},
		{name: "横图缩到宽度上限", width: 4032, height: 3024, maxWidth: 1024, maxHeight: 1024, wantW: 1024, wantH: 768},
		{name: "小图不放大", width: 640, height: 480, maxWidth: 1024, maxHeight: 1024, wantW: 640, wantH: 480},
		{name: "刚好等于上限", width: 1024, height: 1024, maxWidth: 1024, maxHeight: 1024, wantW: 1024, wantH: 1024},
		{name: "只限制宽度", width: 1600, height: 4000, maxWidth: 800, maxHeight: 0, wantW: 800, wantH: 2000},
		{name: "极窄长条至少1像素", width: 10000, height: 2, maxWidth: 1024, maxHeight: 1024, wantW: 1024, wantH: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitWithin(tt.width, tt.height, tt.maxWidth, tt.maxHeight)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("FitWithin(%d, %d, %d, %d) = %dx%d, want %dx%d",
					tt.width, tt.height, tt.maxWidth, tt.maxHeight, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestNormalizeResizesLargeImage(t *testing.T) {
	p := newTestProcessor(t)

	normalized, err := p.Normalize(context.Background(), testJPEG(t, 2000, 3000))
	if err != nil {
		t.Fatalf("Normalize error = %v", err)
	}

	if normalized.Width > 1024 || normalized.Height > 1024 {
		t.Errorf("output %dx%d exceeds 1024x1024", normalized.Width, normalized.Height)
	}
	if !normalized.Resized || normalized.SourceFormat != "jpeg" {
		t.Errorf("Resized=%v SourceFormat=%q, want true/jpeg", normalized.Resized, normalized.SourceFormat)
	}

	srcRatio := 2000.0 / 3000.0
	gotRatio := float64(normalized.Width) / float64(normalized.Height)
	if math.Abs(srcRatio-gotRatio) > 0.01 {
		t.Errorf("aspect ratio %.4f, want %.4f", gotRatio, srcRatio)
	}

	// base64内容必须是同尺寸的PNG
	raw, err := base64.StdEncoding.DecodeString(normalized.Base64)
	if err != nil {
		t.Fatalf("base64 decode error = %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("output is not PNG: %v", err)
	}
	if cfg.Width != normalized.Width || cfg.Height != normalized.Height {
		t.Errorf("encoded PNG is %dx%d, want %dx%d", cfg.Width, cfg.Height, normalized.Width, normalized.Height)
	}
}

func TestNormalizeKeepsSmallImage(t *testing.T) {
	p := newTestProcessor(t)

	normalized, err := p.Normalize(context.Background(), testPNG(t, 300, 200))
	if err != nil {
		t.Fatalf("Normalize error = %v", err)
	}
	if normalized.Width != 300 || normalized.Height != 200 || normalized.Resized {
		t.Errorf("got %dx%d resized=%v, want 300x200 unchanged", normalized.Width, normalized.Height, normalized.Resized)
	}
	if got := normalized.ImageData().DataURL()[:22]; got != "data:image/png;base64," {
		t.Errorf("data URL prefix = %q", got)
	}

	metrics := p.GetMetrics()
	if metrics.TotalProcessed != 1 || metrics.Resized != 0 {
		t.Errorf("unexpected metrics: %+v", metrics)
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	p := newTestProcessor(t)

	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	truncated := testPNG(t, 50, 50)[:40]

	tests := []struct {
		name string
		data []byte
	}{
		{name: "空数据", data: nil},
		{name: "GIF不在白名单", data: gif},
		{name: "文本伪装", data: []byte("definitely not an image")},
		{name: "截断的PNG", data: truncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Normalize(context.Background(), tt.data); err == nil {
				t.Errorf("Normalize(%s) expected error", tt.name)
			}
		})
	}

	if got := p.GetMetrics().FailedValidations; got == 0 {
		t.Errorf("FailedValidations = 0, want > 0")
	}
}

func TestNormalizeRejectsPixelBomb(t *testing.T) {
	config, err := configs.Parse([]byte("upload:\n  max_pixels: 10000\n"))
	if err != nil {
		t.Fatalf("configs.Parse error = %v", err)
	}
	p := NewImageProcessor(config, utils.NewConsoleLogger("info", nil))

	if _, err := p.Normalize(context.Background(), testPNG(t, 200, 200)); err == nil {
		t.Error("expected pixel limit error")
	}
}

func TestIsAllowedContentType(t *testing.T) {
	v := newTestProcessor(t).Validator()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/jpeg", true},
		{"image/png", true},
		{"IMAGE/PNG", true},
		{"image/jpeg; charset=binary", true},
		{"image/gif", false},
		{"image/webp", false},
		{"application/octet-stream", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := v.IsAllowedContentType(tt.contentType); got != tt.want {
			t.Errorf("IsAllowedContentType(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}

func BenchmarkNormalize(b *testing.B) {
	p := newTestProcessor(b)
	data := testJPEG(b, 2000, 3000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Normalize(context.Background(), data); err != nil {
			b.Fatal(err)
		}
	}
}
