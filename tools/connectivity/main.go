package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"parking-sign-server-go/src/configs"
	"parking-sign-server-go/src/core/health"
	"parking-sign-server-go/src/core/providers/vlllm"
	"parking-sign-server-go/src/core/utils"

	// 导入所有providers以确保init函数被调用
	_ "parking-sign-server-go/src/core/providers/vlllm/ollama"
	_ "parking-sign-server-go/src/core/providers/vlllm/openai"
	_ "parking-sign-server-go/src/core/providers/vlllm/vertex"

	"github.com/joho/godotenv"
)

func main() {
	functional := flag.Bool("functional", true, "在基础检查后执行功能性检查（会真实调用一次模型）")
	flag.Parse()

	fmt.Println("=== VLLLM连通性检查 ===")
	_ = godotenv.Load()

	// 加载配置
	config, path, err := configs.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if path == "" {
		path = "(环境变量)"
	}
	log.Printf("使用配置文件: %s", path)

	// 创建日志记录器
	logger, err := utils.NewLogger(config)
	if err != nil {
		log.Fatalf("创建日志记录器失败: %v", err)
	}
	defer logger.Close()

	connConfig := health.ConfigFromYAML(&config.ConnectivityCheck)
	connConfig.Enabled = true

	fmt.Printf("连通性检查配置:\n")
	fmt.Printf("  超时时间: %v\n", connConfig.Timeout)
	fmt.Printf("  重试次数: %d\n", connConfig.RetryAttempts)
	fmt.Printf("  重试延迟: %v\n", connConfig.RetryDelay)
	fmt.Printf("  已注册的provider: %v\n", vlllm.GetRegisteredProviders())

	name, vlllmConfig := config.SelectedVLLM()
	fmt.Printf("\n选中的VLLLM: %s (type=%s, model=%s)\n", name, vlllmConfig.Type, vlllmConfig.ModelName)

	provider, err := vlllm.Create(name, vlllmConfig, logger)
	if err != nil {
		fmt.Printf("\n❌ 创建provider失败: %v\n", err)
		os.Exit(1)
	}
	defer provider.Cleanup()

	checker := health.NewHealthChecker(provider, connConfig, logger)
	ctx := context.Background()

	modes := []health.CheckMode{health.BasicCheck}
	if *functional {
		modes = append(modes, health.FunctionalCheck)
	}

	failed := false
	for _, mode := range modes {
		fmt.Printf("\n开始执行%s检查...\n", mode)
		result, err := checker.Check(ctx, mode)
		if err != nil {
			failed = true
			fmt.Printf("❌ %s检查失败: %v\n", mode, err)
		} else {
			fmt.Printf("✅ %s检查通过！\n", mode)
		}
		fmt.Println(checker.Report())
		if result != nil {
			for key, value := range result.Details {
				fmt.Printf("    %s: %v\n", key, value)
			}
		}
	}

	fmt.Println("\n=== 连通性检查完成 ===")
	if failed {
		os.Exit(1)
	}
}
