package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"parking-sign-server-go/src/core/image"
	"parking-sign-server-go/src/core/providers/vlllm"
	"parking-sign-server-go/src/core/utils"
)

const defaultBaseURL = "http://localhost:11434"

// Request Ollama API请求结构
type Request struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// Message Ollama消息结构
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // 纯base64，不需要data URL前缀
}

// Response Ollama API响应结构
type Response struct {
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Message   Message `json:"message"`
	Done      bool    `json:"done"`
	Error     string  `json:"error,omitempty"`
}

// Provider 本地Ollama的VLLLM提供者
type Provider struct {
	config     *vlllm.Config
	logger     *utils.Logger
	httpClient *http.Client
}

// NewProvider 创建Ollama VLLLM提供者实例
func NewProvider(config *vlllm.Config, logger *utils.Logger) (vlllm.Provider, error) {
	return &Provider{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{},
	}, nil
}

// Initialize Ollama不需要API key，只需要BaseURL
func (p *Provider) Initialize() error {
	if p.config.BaseURL == "" {
		p.config.BaseURL = defaultBaseURL
	}
	if p.config.ModelName == "" {
		return fmt.Errorf("Ollama model_name is required")
	}
	p.logger.Debug("Ollama VLLLM初始化成功", map[string]interface{}{
		"base_url": p.config.BaseURL,
		"model":    p.config.ModelName,
	})
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// Describe 返回 "ollama/<model>"
func (p *Provider) Describe() string {
	return "ollama/" + p.config.ModelName
}

// Ping 调用 /api/tags
func (p *Provider) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/tags", strings.TrimSuffix(p.config.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("创建Ollama请求失败: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Ollama连通性检查失败: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama连通性检查返回%d", resp.StatusCode)
	}
	return nil
}

// Analyze 调用 /api/chat，非流式
func (p *Provider) Analyze(ctx context.Context, prompt string, img image.ImageData) (string, error) {
	options := map[string]interface{}{}
	if p.config.Temperature != 0 {
		options["temperature"] = p.config.Temperature
	}
	if p.config.TopP != 0 {
		options["top_p"] = p.config.TopP
	}
	if p.config.MaxTokens != 0 {
		options["num_predict"] = p.config.MaxTokens
	}

	request := Request{
		Model: p.config.ModelName,
		Messages: []Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []string{img.Data},
			},
		},
		Stream:  false,
		Options: options,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("Ollama请求序列化失败: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", strings.TrimSuffix(p.config.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("创建Ollama请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Ollama API调用失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Ollama响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Ollama API返回错误: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("解析Ollama响应失败: %w", err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("Ollama返回错误: %s", response.Error)
	}
	if response.Message.Content == "" {
		return "", vlllm.ErrEmptyResponse
	}

	return response.Message.Content, nil
}

// init 注册Ollama VLLLM提供者
func init() {
	vlllm.Register("ollama", NewProvider)
}
