package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"parking-sign-server-go/src/core/utils"
)

// FailureMessage 任何失败都只向用户展示这一句
const FailureMessage = "Failed to analyze image. Please try again."

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrBusy             = errors.New("a capture is already in progress")
	ErrNotMounted       = errors.New("session not mounted")
)

// State 界面状态
type State int

const (
	Idle State = iota
	Capturing
	AwaitingAnalysis
	ResultShown
	PermissionDenied
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Capturing:
		return "Capturing"
	case AwaitingAnalysis:
		return "AwaitingAnalysis"
	case ResultShown:
		return "ResultShown"
	case PermissionDenied:
		return "PermissionDenied"
	default:
		return "Unknown"
	}
}

// Submitter 上传接口，Client实现了它
type Submitter interface {
	Submit(ctx context.Context, p *Payload) (string, error)
}

// Session 一个拍照界面的状态机，同一时间最多一个请求在途
type Session struct {
	camera    Camera
	submitter Submitter
	logger    *utils.Logger
	now       func() time.Time

	mu      sync.Mutex
	mounted bool
	state   State
	result  string
}

// NewSession 创建会话，需要先Mount
func NewSession(camera Camera, submitter Submitter, logger *utils.Logger) *Session {
	return &Session{
		camera:    camera,
		submitter: submitter,
		logger:    logger,
		now:       time.Now,
	}
}

// Mount 查询一次相机权限；被拒绝后会话停在PermissionDenied
func (s *Session) Mount(ctx context.Context) error {
	granted, err := s.camera.Permission(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounted = true
	if err != nil || !granted {
		s.state = PermissionDenied
		if err != nil {
			s.logger.Warn("查询相机权限失败", map[string]interface{}{"error": err.Error()})
		}
		return ErrPermissionDenied
	}
	s.state = Idle
	return nil
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result 当前展示的文本
func (s *Session) Result() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Capture 拍照、准备并上传，返回要展示的文本。
// 底层错误只记录日志，展示的是FailureMessage；只有状态不允许时才返回error。
func (s *Session) Capture(ctx context.Context) (string, error) {
	if err := s.begin(); err != nil {
		return "", err
	}

	result := s.run(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.state = ResultShown
	s.result = result
	s.mu.Unlock()
	return result, nil
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.mounted:
		return ErrNotMounted
	case s.state == PermissionDenied:
		return ErrPermissionDenied
	case s.state != Idle:
		return ErrBusy
	}
	s.state = Capturing
	s.result = ""
	return nil
}

func (s *Session) run(ctx context.Context) string {
	raw, err := s.camera.Capture(ctx)
	if err != nil {
		s.logger.Error("拍照失败", map[string]interface{}{"error": err.Error()})
		return FailureMessage
	}

	payload, err := Prepare(raw, s.now())
	if err != nil {
		s.logger.Error("准备上传数据失败", map[string]interface{}{"error": err.Error()})
		return FailureMessage
	}

	s.setState(AwaitingAnalysis)
	analysis, err := s.submitter.Submit(ctx, payload)
	if err != nil {
		s.logger.Error("分析请求失败", map[string]interface{}{"error": err.Error()})
		return FailureMessage
	}
	return analysis
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Reset 对应“再拍一张”，ResultShown回到Idle
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case PermissionDenied:
		return ErrPermissionDenied
	case Capturing, AwaitingAnalysis:
		return ErrBusy
	}
	s.state = Idle
	s.result = ""
	return nil
}
