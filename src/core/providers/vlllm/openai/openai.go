package openai

import (
	"context"
	"fmt"

	"parking-sign-server-go/src/core/image"
	"parking-sign-server-go/src/core/providers/vlllm"
	"parking-sign-server-go/src/core/utils"

	"github.com/sashabaranov/go-openai"
)

// Provider OpenAI兼容接口的VLLLM提供者
type Provider struct {
	config *vlllm.Config
	client *openai.Client
	logger *utils.Logger
}

// NewProvider 创建OpenAI VLLLM提供者实例
func NewProvider(config *vlllm.Config, logger *utils.Logger) (vlllm.Provider, error) {
	return &Provider{
		config: config,
		logger: logger,
	}, nil
}

// Initialize 创建客户端。客户端只读，所有请求共享。
func (p *Provider) Initialize() error {
	if p.config.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required")
	}
	if p.config.ModelName == "" {
		return fmt.Errorf("OpenAI model_name is required")
	}

	clientConfig := openai.DefaultConfig(p.config.APIKey)
	if p.config.BaseURL != "" {
		clientConfig.BaseURL = p.config.BaseURL
	}
	p.client = openai.NewClientWithConfig(clientConfig)

	p.logger.Debug("OpenAI VLLLM初始化成功", map[string]interface{}{
		"model_name": p.config.ModelName,
		"base_url":   p.config.BaseURL,
	})
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	return nil
}

// Describe 返回 "openai/<model>"
func (p *Provider) Describe() string {
	return "openai/" + p.config.ModelName
}

// Ping 列出模型，验证地址与API key
func (p *Provider) Ping(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("OpenAI客户端未初始化")
	}
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("OpenAI连通性检查失败: %w", err)
	}
	return nil
}

// Analyze 一条用户消息，包含文本提示词和内联的data URL图片
func (p *Provider) Analyze(ctx context.Context, prompt string, img image.ImageData) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("OpenAI客户端未初始化")
	}

	request := openai.ChatCompletionRequest{
		Model: p.config.ModelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: img.DataURL(),
						},
					},
				},
			},
		},
		Temperature: float32(p.config.Temperature),
		TopP:        float32(p.config.TopP),
		MaxTokens:   p.config.MaxTokens,
	}

	response, err := p.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("OpenAI Vision API调用失败: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", vlllm.ErrEmptyResponse
	}

	content := response.Choices[0].Message.Content
	if content == "" {
		return "", vlllm.ErrEmptyResponse
	}

	p.logger.Debug("OpenAI Vision API调用成功", map[string]interface{}{
		"model":             response.Model,
		"prompt_tokens":     response.Usage.PromptTokens,
		"completion_tokens": response.Usage.CompletionTokens,
	})
	return content, nil
}

// init 注册OpenAI VLLLM提供者
func init() {
	vlllm.Register("openai", NewProvider)
}
