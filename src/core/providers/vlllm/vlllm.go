package vlllm

import (
	"context"
	"errors"
	"fmt"

	"parking-sign-server-go/src/core/image"
	"parking-sign-server-go/src/core/providers"
)

// ErrEmptyResponse 模型返回了空内容
var ErrEmptyResponse = errors.New("视觉模型返回空内容")

// Config VLLLM配置结构
type Config struct {
	Name        string
	Type        string
	ModelName   string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Data        map[string]interface{}
}

// String 取额外配置中的字符串值
func (c *Config) String(key string) string {
	if c.Data == nil {
		return ""
	}
	if v, ok := c.Data[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

// Provider 视觉语言模型提供者：一次同步调用，一段文字加一张图片，返回模型原文
type Provider interface {
	providers.Provider

	// Analyze 发送提示词与图片，返回模型的文本回复。不重试，不流式。
	Analyze(ctx context.Context, prompt string, img image.ImageData) (string, error)

	// Ping 低成本地验证服务地址与凭据可用，不生成内容
	Ping(ctx context.Context) error

	// Describe 返回用于日志与状态页的描述，如 "openai/gpt-4o-mini"
	Describe() string
}
