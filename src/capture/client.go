package capture

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"parking-sign-server-go/src/core/auth"
	"parking-sign-server-go/src/core/utils"

	"github.com/go-resty/resty/v2"
)

const (
	// SubmitTimeout 单次上传的超时
	SubmitTimeout = 60 * time.Second
	AnalyzePath   = "/analyze-sign"
)

type analysisResponse struct {
	Analysis string `json:"analysis"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client 调用分析服务
type Client struct {
	http   *resty.Client
	logger *utils.Logger
}

// NewClient 创建客户端，baseURL形如 http://192.168.1.10:3000
func NewClient(baseURL string, logger *utils.Logger) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(SubmitTimeout).
		SetLogger(restyLogger{logger}).
		SetHeader("Accept", "application/json")
	return &Client{http: rc, logger: logger}
}

// SetAuthToken 服务端启用认证时使用
func (c *Client) SetAuthToken(token string) *Client {
	c.http.SetAuthToken(token)
	return c
}

// SetAuthSecret 用服务端的共享密钥为clientID签发令牌并携带
func (c *Client) SetAuthSecret(secret, clientID string) error {
	at, err := auth.NewAuthToken(secret, 0)
	if err != nil {
		return fmt.Errorf("创建令牌工具失败: %w", err)
	}
	token, err := at.GenerateToken(clientID)
	if err != nil {
		return fmt.Errorf("签发令牌失败: %w", err)
	}
	c.SetAuthToken(token)
	return nil
}

// SetTimeout 覆盖默认超时
func (c *Client) SetTimeout(timeout time.Duration) *Client {
	c.http.SetTimeout(timeout)
	return c
}

// Submit 发送一次multipart请求，返回analysis字段
func (c *Client) Submit(ctx context.Context, p *Payload) (string, error) {
	fields := map[string]string{
		"dayOfWeek": p.DayOfWeek,
		"date":      p.Date,
	}
	if p.Time != "" {
		fields["time"] = p.Time
	}

	var result analysisResponse
	var failure errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("image", p.Filename, p.ContentType, bytes.NewReader(p.Image)).
		SetMultipartFormData(fields).
		SetResult(&result).
		SetError(&failure).
		Post(AnalyzePath)
	if err != nil {
		return "", fmt.Errorf("上传照片失败: %w", err)
	}

	c.logger.Debug("分析服务响应", map[string]interface{}{
		"status":   resp.StatusCode(),
		"duration": resp.Time().String(),
	})

	if !resp.IsSuccess() {
		return "", fmt.Errorf("分析服务返回%d: %s", resp.StatusCode(), failure.Error)
	}
	if result.Analysis == "" {
		return "", fmt.Errorf("响应中没有analysis字段: %s", resp.String())
	}
	return result.Analysis, nil
}

// restyLogger 把resty内部日志转到utils.Logger
type restyLogger struct {
	logger *utils.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
