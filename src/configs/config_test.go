package configs

import (
	"os"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("VLLLM_PROVIDER", "")
	t.Setenv("LOG_LEVEL", "")

	config, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}

	if config.Web.Port != DefaultPort {
		t.Errorf("Web.Port = %d, want %d", config.Web.Port, DefaultPort)
	}
	if config.Upload.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("Upload.MaxFileSize = %d, want %d", config.Upload.MaxFileSize, DefaultMaxFileSize)
	}
	if config.Image.MaxWidth != 1024 || config.Image.MaxHeight != 1024 {
		t.Errorf("Image = %dx%d, want 1024x1024", config.Image.MaxWidth, config.Image.MaxHeight)
	}

	name, vc := config.SelectedVLLM()
	if name != "openai" {
		t.Errorf("selected = %q, want openai", name)
	}
	if vc.ModelName != DefaultModelName {
		t.Errorf("ModelName = %q, want %q", vc.ModelName, DefaultModelName)
	}
	if vc.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want value from OPENAI_API_KEY", vc.APIKey)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("VLLLM_PROVIDER", "gpt")
	t.Setenv("LOG_LEVEL", "debug")

	data := []byte(`
web:
  port: 9000
selected_module:
  VLLLM: openai
VLLLM:
  gpt:
    type: openai
    model_name: gpt-4o
  local:
    type: ollama
    model_name: llava
    url: http://localhost:11434
`)

	config, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	if config.Web.Port != 8088 {
		t.Errorf("Web.Port = %d, want 8088", config.Web.Port)
	}
	if config.Log.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", config.Log.LogLevel)
	}
	name, vc := config.SelectedVLLM()
	if name != "gpt" || vc.ModelName != "gpt-4o" {
		t.Errorf("selected = %q/%q, want gpt/gpt-4o", name, vc.ModelName)
	}
	if vc.APIKey != "sk-env" {
		t.Errorf("openai APIKey = %q, want sk-env", vc.APIKey)
	}
	if config.VLLLM["local"].APIKey != "" {
		t.Errorf("ollama entry must not receive the OpenAI key")
	}
}

func TestParseErrors(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("VLLLM_PROVIDER", "")

	tests := []struct {
		name string
		data string
	}{
		{
			name: "未知的provider",
			data: "selected_module:\n  VLLLM: missing\n",
		},
		{
			name: "端口越界",
			data: "web:\n  port: 70000\n",
		},
		{
			name: "启用认证但没有密钥",
			data: "server:\n  auth:\n    enabled: true\n",
		},
		{
			name: "非法yaml",
			data: "web: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Errorf("Parse(%q) expected error", tt.data)
			}
		})
	}
}

func TestShippedConfigHasNoTokenCap(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("VLLLM_PROVIDER", "")

	data, err := os.ReadFile("../../config.yaml")
	if err != nil {
		t.Fatalf("读取config.yaml失败: %v", err)
	}
	config, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}

	tests := []struct {
		name     string
		provider string
	}{
		{name: "openai不限制输出长度", provider: "openai"},
		{name: "ollama不限制输出长度", provider: "ollama"},
		{name: "vertex不限制输出长度", provider: "vertex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc, ok := config.VLLLM[tt.provider]
			if !ok {
				t.Fatalf("config.yaml缺少%s配置", tt.provider)
			}
			if vc.MaxTokens != 0 {
				t.Errorf("MaxTokens = %d, want 0", vc.MaxTokens)
			}
		})
	}
}
