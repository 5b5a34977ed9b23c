package vertex

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"parking-sign-server-go/src/core/image"
	"parking-sign-server-go/src/core/providers/vlllm"
	"parking-sign-server-go/src/core/utils"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

// Provider Google Vertex AI Gemini的VLLLM提供者
type Provider struct {
	config *vlllm.Config
	logger *utils.Logger
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewProvider 创建Vertex VLLLM提供者实例
func NewProvider(config *vlllm.Config, logger *utils.Logger) (vlllm.Provider, error) {
	return &Provider{
		config: config,
		logger: logger,
	}, nil
}

// Initialize 需要project_id与location，credentials_file可选
func (p *Provider) Initialize() error {
	projectID := p.config.String("project_id")
	location := p.config.String("location")
	if projectID == "" || location == "" {
		return fmt.Errorf("Vertex需要配置project_id与location")
	}
	if p.config.ModelName == "" {
		return fmt.Errorf("Vertex model_name is required")
	}

	var opts []option.ClientOption
	if credentials := p.config.String("credentials_file"); credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}
	if p.config.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(p.config.BaseURL))
	}

	client, err := genai.NewClient(context.Background(), projectID, location, opts...)
	if err != nil {
		return fmt.Errorf("创建Vertex客户端失败: %w", err)
	}

	model := client.GenerativeModel(p.config.ModelName)
	if p.config.Temperature != 0 {
		model.SetTemperature(float32(p.config.Temperature))
	}
	if p.config.TopP != 0 {
		model.SetTopP(float32(p.config.TopP))
	}
	if p.config.MaxTokens != 0 {
		model.SetMaxOutputTokens(int32(p.config.MaxTokens))
	}

	p.client = client
	p.model = model
	return nil
}

// Cleanup 关闭客户端
func (p *Provider) Cleanup() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Describe 返回 "vertex/<model>"
func (p *Provider) Describe() string {
	return "vertex/" + p.config.ModelName
}

// Ping 调用CountTokens，不产生生成费用
func (p *Provider) Ping(ctx context.Context) error {
	if p.model == nil {
		return fmt.Errorf("Vertex模型未初始化")
	}
	if _, err := p.model.CountTokens(ctx, genai.Text("ping")); err != nil {
		return fmt.Errorf("Vertex连通性检查失败: %w", err)
	}
	return nil
}

// Analyze 文本与图片作为同一轮用户输入
func (p *Provider) Analyze(ctx context.Context, prompt string, img image.ImageData) (string, error) {
	if p.model == nil {
		return "", fmt.Errorf("Vertex模型未初始化")
	}

	raw := img.Raw
	if raw == nil {
		decoded, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			return "", fmt.Errorf("图片base64解码失败: %w", err)
		}
		raw = decoded
	}

	format := img.Format
	if format == "" {
		format = "png"
	}

	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt), genai.ImageData(format, raw))
	if err != nil {
		return "", fmt.Errorf("Vertex GenerateContent调用失败: %w", err)
	}
	return responseText(resp)
}

// responseText 拼接第一个候选中的全部文本片段
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", vlllm.ErrEmptyResponse
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", vlllm.ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", vlllm.ErrEmptyResponse
	}
	return b.String(), nil
}

// init 注册Vertex VLLLM提供者
func init() {
	vlllm.Register("vertex", NewProvider)
}
