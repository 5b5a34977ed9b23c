package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"parking-sign-server-go/src/capture"
	"parking-sign-server-go/src/configs"
	"parking-sign-server-go/src/core/utils"
)

func main() {
	server := flag.String("server", "http://localhost:3000", "分析服务地址")
	token := flag.String("token", "", "Bearer token，服务端启用认证时需要")
	secret := flag.String("secret", "", "服务端的server.auth.secret，用它在本地签发token")
	clientID := flag.String("client-id", "capture-cli", "签发token时使用的客户端ID")
	logLevel := flag.String("log-level", "info", "日志级别")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "用法: %s [flags] <photo.jpg|photo.png>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := utils.NewConsoleLogger(*logLevel, os.Stderr)
	client := capture.NewClient(*server, logger)
	switch {
	case *token != "":
		client.SetAuthToken(*token)
	case *secret != "":
		if err := client.SetAuthSecret(*secret, *clientID); err != nil {
			logger.Error("签发令牌失败", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	default:
		// 没有显式凭据时沿用本地配置文件中的认证设置
		if config, path, err := configs.LoadConfig(); err == nil && config.Server.Auth.Enabled {
			if err := client.SetAuthSecret(config.Server.Auth.Secret, *clientID); err != nil {
				logger.Error("签发令牌失败", map[string]interface{}{"error": err.Error(), "config": path})
				os.Exit(1)
			}
			logger.Debug("使用配置文件中的密钥签发令牌", map[string]interface{}{"config": path})
		}
	}

	ctx := context.Background()
	session := capture.NewSession(capture.NewFileCamera(flag.Arg(0)), client, logger)
	if err := session.Mount(ctx); err != nil {
		fmt.Println("Camera permission is required to analyze parking signs.")
		os.Exit(1)
	}

	result, err := session.Capture(ctx)
	if err != nil {
		logger.Error("拍照失败", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	fmt.Println(result)
	if result == capture.FailureMessage {
		os.Exit(1)
	}
}
