package analyze

import (
	"context"

	"github.com/gin-gonic/gin"
)

// AnalyzeService 定义停车标志分析服务接口
type AnalyzeService interface {
	// 将路由注册到 router
	Start(ctx context.Context, router gin.IRouter) error
}
