package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 主配置结构
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Auth struct {
			Enabled bool   `yaml:"enabled"`
			Secret  string `yaml:"secret"`
		} `yaml:"auth"`
	} `yaml:"server"`

	Log struct {
		LogLevel string `yaml:"log_level"`
		LogDir   string `yaml:"log_dir"`
		LogFile  string `yaml:"log_file"`
	} `yaml:"log"`

	Web struct {
		Port        int      `yaml:"port"`
		CorsOrigins []string `yaml:"cors_origins"`
	} `yaml:"web"`

	Upload UploadConfig `yaml:"upload"`
	Image  ImageConfig  `yaml:"image"`

	SelectedModule map[string]string     `yaml:"selected_module"`
	VLLLM          map[string]VLLMConfig `yaml:"VLLLM"`

	ConnectivityCheck ConnectivityCheckConfig `yaml:"connectivity_check"`
}

// UploadConfig 上传限制配置
type UploadConfig struct {
	MaxFileSize  int64    `yaml:"max_file_size"` // 单个图片最大字节数
	AllowedTypes []string `yaml:"allowed_types"` // 允许的Content-Type
	MaxPixels    int64    `yaml:"max_pixels"`    // 解码前的像素上限
}

// ImageConfig 服务端图片归一化配置
type ImageConfig struct {
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
}

// VLLMConfig VLLLM配置结构（视觉语言大模型）
type VLLMConfig struct {
	Type        string                 `yaml:"type"`        // openai / ollama / vertex
	ModelName   string                 `yaml:"model_name"`  // 固定的模型名称
	BaseURL     string                 `yaml:"url"`         // API地址
	APIKey      string                 `yaml:"api_key"`     // API密钥
	Temperature float64                `yaml:"temperature"` // 温度参数
	MaxTokens   int                    `yaml:"max_tokens"`  // 最大令牌数
	TopP        float64                `yaml:"top_p"`       // TopP参数
	Extra       map[string]interface{} `yaml:",inline"`     // 额外配置，如vertex的project_id
}

// ConnectivityCheckConfig 连通性检查配置
type ConnectivityCheckConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Functional    bool   `yaml:"functional"`
	Timeout       string `yaml:"timeout"`
	RetryAttempts int    `yaml:"retry_attempts"`
	RetryDelay    string `yaml:"retry_delay"`
	TestPrompt    string `yaml:"test_prompt"`
}

const (
	DefaultPort        = 3000
	DefaultMaxFileSize = 5 * 1024 * 1024
	DefaultMaxEdge     = 1024
	DefaultMaxPixels   = 50_000_000
	DefaultModelName   = "gpt-4o-mini"
	DefaultProvider    = "openai"
)

// LoadConfig 从文件加载配置，优先.config.yaml，然后叠加环境变量
func LoadConfig() (*Config, string, error) {
	path := ".config.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, path, err
		}
		// 没有配置文件时完全依赖环境变量
		data = nil
		path = ""
	}

	config, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return config, path, nil
}

// Parse 解析yaml内容，应用环境变量与默认值
func Parse(data []byte) (*Config, error) {
	config := &Config{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv 环境变量覆盖：PORT、OPENAI_API_KEY、VLLLM_PROVIDER、LOG_LEVEL
func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Web.Port = p
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.LogLevel = level
	}
	if selected := os.Getenv("VLLLM_PROVIDER"); selected != "" {
		if c.SelectedModule == nil {
			c.SelectedModule = make(map[string]string)
		}
		c.SelectedModule["VLLLM"] = selected
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return
	}
	for name, vc := range c.VLLLM {
		if strings.EqualFold(vc.Type, "openai") && vc.APIKey == "" {
			vc.APIKey = apiKey
			c.VLLLM[name] = vc
		}
	}
}

// Validate 补全默认值并检查配置合法性
func (c *Config) Validate() error {
	if c.Web.Port == 0 {
		c.Web.Port = DefaultPort
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("无效的端口: %d", c.Web.Port)
	}
	if c.Log.LogLevel == "" {
		c.Log.LogLevel = "info"
	}
	if c.Log.LogDir != "" && c.Log.LogFile == "" {
		c.Log.LogFile = "server.log"
	}

	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = DefaultMaxFileSize
	}
	if c.Upload.MaxFileSize < 0 {
		return fmt.Errorf("无效的上传大小限制: %d", c.Upload.MaxFileSize)
	}
	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = []string{"image/jpeg", "image/png"}
	}
	if c.Upload.MaxPixels == 0 {
		c.Upload.MaxPixels = DefaultMaxPixels
	}

	if c.Image.MaxWidth == 0 {
		c.Image.MaxWidth = DefaultMaxEdge
	}
	if c.Image.MaxHeight == 0 {
		c.Image.MaxHeight = DefaultMaxEdge
	}
	if c.Image.MaxWidth < 0 || c.Image.MaxHeight < 0 {
		return fmt.Errorf("无效的图片尺寸限制: %dx%d", c.Image.MaxWidth, c.Image.MaxHeight)
	}

	if c.SelectedModule == nil {
		c.SelectedModule = make(map[string]string)
	}
	if c.SelectedModule["VLLLM"] == "" {
		c.SelectedModule["VLLLM"] = DefaultProvider
	}
	if c.VLLLM == nil {
		c.VLLLM = make(map[string]VLLMConfig)
	}
	selected := c.SelectedModule["VLLLM"]
	if _, ok := c.VLLLM[selected]; !ok {
		if selected != DefaultProvider {
			return fmt.Errorf("未找到VLLLM配置: %s", selected)
		}
		// 默认openai配置，凭据来自OPENAI_API_KEY
		c.VLLLM[selected] = VLLMConfig{
			Type:      "openai",
			ModelName: DefaultModelName,
			APIKey:    os.Getenv("OPENAI_API_KEY"),
		}
	}
	for name, vc := range c.VLLLM {
		if vc.Type == "" {
			vc.Type = name
		}
		if vc.ModelName == "" && strings.EqualFold(vc.Type, "openai") {
			vc.ModelName = DefaultModelName
		}
		c.VLLLM[name] = vc
	}

	if c.Server.Auth.Enabled && c.Server.Auth.Secret == "" {
		return fmt.Errorf("启用认证时必须配置 server.auth.secret")
	}
	return nil
}

// SelectedVLLM 返回当前选中的VLLLM名称与配置
func (c *Config) SelectedVLLM() (string, VLLMConfig) {
	name := c.SelectedModule["VLLLM"]
	return name, c.VLLLM[name]
}
