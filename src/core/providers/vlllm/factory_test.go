package vlllm

import (
	"context"
	"errors"
	"testing"

	"parking-sign-server-go/src/configs"
	"parking-sign-server-go/src/core/image"
	"parking-sign-server-go/src/core/utils"
)

type stubProvider struct {
	config      *Config
	initialized bool
	initErr     error
}

func (s *stubProvider) Initialize() error {
	s.initialized = true
	return s.initErr
}

func (s *stubProvider) Cleanup() error { return nil }

func (s *stubProvider) Describe() string { return "stub/" + s.config.ModelName }

func (s *stubProvider) Ping(ctx context.Context) error { return nil }

func (s *stubProvider) Analyze(ctx context.Context, prompt string, img image.ImageData) (string, error) {
	return "ok", nil
}

func TestCreateUsesRegisteredFactory(t *testing.T) {
	var created *stubProvider
	Register("Stub", func(config *Config, logger *utils.Logger) (Provider, error) {
		created = &stubProvider{config: config}
		return created, nil
	})

	provider, err := Create("my-stub", configs.VLLMConfig{
		Type:      "stub",
		ModelName: "vision-1",
		Extra:     map[string]interface{}{"project_id": "p1"},
	}, utils.NewConsoleLogger("info", nil))
	if err != nil {
		t.Fatalf("Create error = %v", err)
	}

	if !created.initialized {
		t.Error("Create must initialize the provider")
	}
	if provider.Describe() != "stub/vision-1" {
		t.Errorf("Describe = %q", provider.Describe())
	}
	if created.config.Name != "my-stub" || created.config.String("project_id") != "p1" {
		t.Errorf("config not converted: %+v", created.config)
	}

	found := false
	for _, name := range GetRegisteredProviders() {
		if name == "stub" {
			found = true
		}
	}
	if !found {
		t.Error("registered provider names should include stub")
	}
}

func TestCreateErrors(t *testing.T) {
	initErr := errors.New("no credentials")
	Register("broken", func(config *Config, logger *utils.Logger) (Provider, error) {
		return &stubProvider{config: config, initErr: initErr}, nil
	})

	logger := utils.NewConsoleLogger("info", nil)

	if _, err := Create("x", configs.VLLMConfig{Type: "unknown"}, logger); err == nil {
		t.Error("unknown type should fail")
	}
	if _, err := Create("x", configs.VLLMConfig{Type: "broken"}, logger); !errors.Is(err, initErr) {
		t.Errorf("err = %v, want wrapped init error", err)
	}
}
