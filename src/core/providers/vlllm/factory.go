package vlllm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"parking-sign-server-go/src/configs"
	"parking-sign-server-go/src/core/utils"
)

// Factory VLLLM工厂函数类型
type Factory func(config *Config, logger *utils.Logger) (Provider, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register 注册VLLLM提供者工厂
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[strings.ToLower(name)] = factory
}

// Create 按配置创建并初始化VLLLM提供者实例
func Create(name string, vlllmConfig configs.VLLMConfig, logger *utils.Logger) (Provider, error) {
	factoriesMu.RLock()
	factory, ok := factories[strings.ToLower(vlllmConfig.Type)]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("未知的VLLLM提供者类型: %s", vlllmConfig.Type)
	}

	// 转换配置格式
	config := &Config{
		Name:        name,
		Type:        vlllmConfig.Type,
		ModelName:   vlllmConfig.ModelName,
		BaseURL:     vlllmConfig.BaseURL,
		APIKey:      vlllmConfig.APIKey,
		Temperature: vlllmConfig.Temperature,
		MaxTokens:   vlllmConfig.MaxTokens,
		TopP:        vlllmConfig.TopP,
		Data:        vlllmConfig.Extra,
	}

	provider, err := factory(config, logger)
	if err != nil {
		return nil, fmt.Errorf("创建VLLLM提供者失败: %w", err)
	}

	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("初始化VLLLM提供者失败: %w", err)
	}

	logger.Info("VLLLM提供者创建成功", map[string]interface{}{
		"name":       name,
		"type":       config.Type,
		"model_name": config.ModelName,
	})

	return provider, nil
}

// GetRegisteredProviders 获取已注册的提供者列表
func GetRegisteredProviders() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	var names []string
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
