package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"parking-sign-server-go/src/analyze"
	"parking-sign-server-go/src/configs"
	"parking-sign-server-go/src/core/health"
	"parking-sign-server-go/src/core/image"
	"parking-sign-server-go/src/core/providers/vlllm"
	"parking-sign-server-go/src/core/utils"

	// 导入所有providers以确保init函数被调用
	_ "parking-sign-server-go/src/core/providers/vlllm/ollama"
	_ "parking-sign-server-go/src/core/providers/vlllm/openai"
	_ "parking-sign-server-go/src/core/providers/vlllm/vertex"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func LoadConfigAndLogger() (*configs.Config, *utils.Logger, error) {
	// 加载配置,默认使用.config.yaml
	config, configPath, err := configs.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 初始化日志系统
	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	if configPath == "" {
		configPath = "(无配置文件，仅使用环境变量)"
	}
	logger.Info(fmt.Sprintf("日志系统初始化成功, 配置文件路径: %s", configPath))

	return config, logger, nil
}

// InitProvider 创建选中的VLLLM provider并执行启动检查，检查失败只记录日志
func InitProvider(ctx context.Context, config *configs.Config, logger *utils.Logger) (vlllm.Provider, *health.HealthChecker, error) {
	name, vlllmConfig := config.SelectedVLLM()
	provider, err := vlllm.Create(name, vlllmConfig, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("创建VLLLM provider %s 失败: %w", name, err)
	}
	logger.Info(fmt.Sprintf("VLLLM provider %s 初始化成功: %s", name, provider.Describe()))

	connConfig := health.ConfigFromYAML(&config.ConnectivityCheck)
	checker := health.NewHealthChecker(provider, connConfig, logger)

	mode := health.BasicCheck
	if connConfig.Functional {
		mode = health.FunctionalCheck
	}
	if _, err := checker.Check(ctx, mode); err != nil {
		logger.Warn("VLLLM启动检查未通过，服务继续启动", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return provider, checker, nil
}

func newCORS(origins []string) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	return cors.New(corsConfig)
}

func StartHttpServer(config *configs.Config, logger *utils.Logger, g *errgroup.Group, groupCtx context.Context,
	provider vlllm.Provider, checker *health.HealthChecker) (*http.Server, error) {
	// 初始化Gin引擎
	if config.Log.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), newCORS(config.Web.CorsOrigins))
	router.SetTrustedProxies(nil)

	// 启动停车标志分析服务
	processor := image.NewImageProcessor(config, logger)
	analyzeService, err := analyze.NewDefaultAnalyzeService(config, logger, provider, processor, checker)
	if err != nil {
		logger.Error("分析服务初始化失败", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	if err := analyzeService.Start(groupCtx, router); err != nil {
		logger.Error("分析服务启动失败", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	// HTTP Server（支持优雅关机）
	httpServer := &http.Server{
		Addr:    config.Server.IP + ":" + strconv.Itoa(config.Web.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.Info(fmt.Sprintf("Gin 服务已启动，访问地址: http://0.0.0.0:%d", config.Web.Port))

		// 在单独的 goroutine 中监听关闭信号
		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭HTTP服务...")

			// 创建关闭超时上下文
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP服务关闭失败", map[string]interface{}{"error": err.Error()})
			} else {
				logger.Info("HTTP服务已优雅关闭")
			}
		}()

		// ListenAndServe 返回 ErrServerClosed 时表示正常关闭
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP 服务启动失败", map[string]interface{}{"error": err.Error()})
			return err
		}
		return nil
	})

	return httpServer, nil
}

func GracefulShutdown(cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group) {
	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// 等待信号或服务异常退出
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case sig := <-sigChan:
		logger.Info(fmt.Sprintf("接收到系统信号: %v，开始优雅关闭服务", sig))
	case err := <-done:
		if err != nil {
			logger.Error("服务异常退出", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		return
	}

	// 取消上下文，通知所有服务开始关闭
	cancel()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("服务关闭过程中出现错误", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		logger.Info("所有服务已优雅关闭")
	case <-time.After(15 * time.Second):
		logger.Error("服务关闭超时，强制退出")
		os.Exit(1)
	}
}

func main() {
	// 先加载 .env，配置中的环境变量覆盖依赖它
	envErr := godotenv.Load()

	// 加载配置和初始化日志系统
	config, logger, err := LoadConfigAndLogger()
	if err != nil {
		fmt.Println("加载配置或初始化日志系统失败:", err)
		os.Exit(1)
	}
	defer logger.Close()

	if envErr != nil {
		logger.Warn("未找到 .env 文件，使用系统环境变量")
	}

	// 创建可取消的上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, checker, err := InitProvider(ctx, config, logger)
	if err != nil {
		logger.Error("初始化VLLLM provider失败", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer provider.Cleanup()

	g, groupCtx := errgroup.WithContext(ctx)

	if _, err := StartHttpServer(config, logger, g, groupCtx, provider, checker); err != nil {
		logger.Error("启动 Http 服务失败", map[string]interface{}{"error": err.Error()})
		cancel()
		os.Exit(1)
	}

	// 启动优雅关机处理
	GracefulShutdown(cancel, logger, g)

	logger.Info("程序已成功退出")
}
