// Package capture 实现拍照客户端：取图、本地缩放、打时间戳、上传并展示分析结果。
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// RawImage 相机返回的原始照片
type RawImage struct {
	Data     []byte
	Filename string
}

// Camera 拍照硬件的抽象
type Camera interface {
	// Permission 查询是否允许使用相机，只在Mount时调用一次
	Permission(ctx context.Context) (bool, error)
	// Capture 拍一张照片
	Capture(ctx context.Context) (RawImage, error)
}

// FileCamera 从文件读取照片，供命令行工具使用
type FileCamera struct {
	Path string
}

// NewFileCamera 创建文件相机
func NewFileCamera(path string) *FileCamera {
	return &FileCamera{Path: path}
}

// Permission 文件存在且可读视为已授权
func (c *FileCamera) Permission(ctx context.Context) (bool, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		if os.IsPermission(err) {
			return false, nil
		}
		return false, fmt.Errorf("无法访问照片文件: %w", err)
	}
	f.Close()
	return true, nil
}

func (c *FileCamera) Capture(ctx context.Context) (RawImage, error) {
	if err := ctx.Err(); err != nil {
		return RawImage{}, err
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return RawImage{}, fmt.Errorf("读取照片失败: %w", err)
	}
	return RawImage{Data: data, Filename: filepath.Base(c.Path)}, nil
}
