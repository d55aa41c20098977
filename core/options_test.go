package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestGoOptionsResolver_RuntimeOverridesLoaded(t *testing.T) {
	defaults := DefaultConfig()
	loaded := defaults
	loaded.Consumer = ConsumerConfig{Key: "loaded-key", Secret: "loaded-secret"}
	loaded.CallbackURL = "https://loaded.example/cb"
	loaded.Publish.Workers = 8

	runtime := Config{Consumer: ConsumerConfig{Key: "runtime-key"}}

	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Consumer.Key != "runtime-key" {
		t.Fatalf("expected runtime consumer key, got %q", resolved.Consumer.Key)
	}
	if resolved.Consumer.Secret != "loaded-secret" {
		t.Fatalf("expected loaded consumer secret to survive, got %q", resolved.Consumer.Secret)
	}
	if resolved.Publish.Workers != 8 {
		t.Fatalf("expected loaded worker count, got %d", resolved.Publish.Workers)
	}
	if resolved.Endpoints.RequestTokenURL != DefaultRequestTokenURL {
		t.Fatalf("expected default endpoint, got %q", resolved.Endpoints.RequestTokenURL)
	}
}

func TestGoOptionsResolver_ValidatesResult(t *testing.T) {
	_, err := GoOptionsResolver{}.Resolve(DefaultConfig(), Config{}, Config{})
	if err == nil {
		t.Fatalf("expected missing consumer credentials to fail validation")
	}
}

func TestCfgxConfigProvider_LoadsRawValues(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-file",
		"consumer": map[string]any{
			"key":    "file-key",
			"secret": "file-secret",
		},
		"callback_url": "https://file.example/cb",
	}})
	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "from-file" || cfg.Consumer.Key != "file-key" {
		t.Fatalf("unexpected loaded config %+v", cfg)
	}
	if cfg.OAuth.RequestTokenTTL != 10*time.Minute {
		t.Fatalf("expected default ttl retained, got %s", cfg.OAuth.RequestTokenTTL)
	}
}

func TestNewService_LoadsCredentialsFromConfigProvider(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"consumer": map[string]any{
			"key":    "file-key",
			"secret": "file-secret",
		},
		"callback_url": "https://file.example/cb",
	}})
	svc, err := NewService(Config{},
		WithLogger(stubLogger{}),
		WithConfigProvider(provider),
		WithHandshakeClient(&stubHandshakeClient{}),
		WithAccountResolver(stubAccountResolver{}),
		WithDirectiveScanner(stubScanner{}),
		WithContentResolver(&stubContentResolver{}),
		WithPublisher(newRecordingPublisher()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer svc.Close(context.Background())
	if got := svc.Config().Credentials(); got.Key != "file-key" || got.Secret != "file-secret" {
		t.Fatalf("unexpected credentials %+v", got)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil || deps.ErrorMapper == nil || deps.TokenStore == nil || deps.Dispatcher == nil {
		t.Fatalf("expected default dependencies, got %+v", deps)
	}
}

func TestNewService_BuildErrorsAreMapped(t *testing.T) {
	sentinel := errors.New("sentinel")
	mapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	_, err := NewService(Config{}, WithLogger(stubLogger{}), WithErrorMapper(mapper))
	if err == nil {
		t.Fatalf("expected build error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryOperation {
		t.Fatalf("expected mapped build error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config: %v", err)
	}

	bad := cfg
	bad.OAuth.SignatureTransport = "body"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected unknown signature transport to fail")
	}

	bad = cfg
	bad.CallbackURL = "/relative"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected relative callback url to fail")
	}

	bad = cfg
	bad.Publish.Workers = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected zero workers to fail")
	}
}
