package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	config            Config
	obs               observer
	loggerProvider    LoggerProvider
	errorMapper       ErrorMapper
	persistenceClient any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	tokenStore        TokenStore
	nonceLedger       NonceLedger
	handshakeClient   HandshakeClient
	accountResolver   AccountResolver
	scanner           DirectiveScanner
	contentResolver   ContentResolver
	publisher         Publisher
	dispatcher        PublishDispatcher
	ownedDispatcher   *AsyncPublishDispatcher
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorMapper       ErrorMapper
	PersistenceClient any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	TokenStore        TokenStore
	NonceLedger       NonceLedger
	HandshakeClient   HandshakeClient
	AccountResolver   AccountResolver
	Scanner           DirectiveScanner
	ContentResolver   ContentResolver
	Publisher         Publisher
	Dispatcher        PublishDispatcher
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("crosspost", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("crosspost"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.tokenStore == nil && builder.repositoryFactory != nil {
		stores, buildErr := resolveStoreProvider(builder.repositoryFactory, builder.persistenceClient)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		if stores != nil {
			builder.tokenStore = NewTokenStore(stores.RequestTokenStore(), stores.LinkStore())
		}
	}
	if builder.tokenStore == nil {
		builder.tokenStore = NewMemoryTokenStore(finalConfig.OAuth.RequestTokenTTL)
	}
	if builder.nonceLedger == nil {
		builder.nonceLedger = NewMemoryNonceLedger(defaultNonceWindow)
	}

	if builder.componentFactory != nil {
		components, buildErr := builder.componentFactory.BuildComponents(ComponentDependencies{
			Config:         finalConfig,
			TokenStore:     builder.tokenStore,
			NonceLedger:    builder.nonceLedger,
			Logger:         logger,
			LoggerProvider: provider,
		})
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		builder.applyComponents(components)
	}
	if err := builder.requireComponents(); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	obs := observer{logger: logger, metrics: builder.metricsRecorder}
	svc := &Service{
		config:            finalConfig,
		obs:               obs,
		loggerProvider:    provider,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		tokenStore:        builder.tokenStore,
		nonceLedger:       builder.nonceLedger,
		handshakeClient:   builder.handshakeClient,
		accountResolver:   builder.accountResolver,
		scanner:           builder.scanner,
		contentResolver:   builder.contentResolver,
		publisher:         builder.publisher,
		dispatcher:        builder.dispatcher,
	}

	if svc.dispatcher == nil {
		queue := builder.publishQueue
		if queue == nil {
			queue = NewMemoryJobQueue(finalConfig.Publish.QueueSize)
		}
		dispatcher, buildErr := NewAsyncPublishDispatcher(
			builder.tokenStore,
			builder.publisher,
			queue,
			PublishDispatcherConfig{
				Workers: finalConfig.Publish.Workers,
				Timeout: finalConfig.Publish.Timeout,
			},
			WithDispatcherLogger(logger),
			WithDispatcherMetrics(builder.metricsRecorder),
			WithDispatcherHooks(builder.publishHooks...),
		)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		if startErr := dispatcher.Start(context.Background()); startErr != nil {
			return nil, mapBuildError(builder.errorMapper, startErr)
		}
		svc.dispatcher = dispatcher
		svc.ownedDispatcher = dispatcher
	}
	return svc, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func resolveStoreProvider(factory any, persistenceClient any) (StoreProvider, error) {
	switch typed := factory.(type) {
	case RepositoryStoreFactory:
		return typed.BuildStores(persistenceClient)
	case StoreProvider:
		return typed, nil
	default:
		return nil, fmt.Errorf("core: repository factory %T is not supported", factory)
	}
}

func (b *serviceBuilder) applyComponents(components Components) {
	if b.handshakeClient == nil {
		b.handshakeClient = components.HandshakeClient
	}
	if b.accountResolver == nil {
		b.accountResolver = components.AccountResolver
	}
	if b.scanner == nil {
		b.scanner = components.Scanner
	}
	if b.contentResolver == nil {
		b.contentResolver = components.ContentResolver
	}
	if b.publisher == nil {
		b.publisher = components.Publisher
	}
}

func (b *serviceBuilder) requireComponents() error {
	switch {
	case b.handshakeClient == nil:
		return fmt.Errorf("core: handshake client is required")
	case b.accountResolver == nil:
		return fmt.Errorf("core: account resolver is required")
	case b.scanner == nil:
		return fmt.Errorf("core: directive scanner is required")
	case b.contentResolver == nil:
		return fmt.Errorf("core: content resolver is required")
	case b.publisher == nil && b.dispatcher == nil:
		return fmt.Errorf("core: publisher is required")
	}
	return nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) mapError(err error) error {
	if s == nil {
		return err
	}
	return mapBuildError(s.errorMapper, err)
}

func (s *Service) observe(ctx context.Context, startedAt time.Time, operation string, err error, fields map[string]any) {
	if s == nil {
		return
	}
	s.obs.observeOperation(ctx, startedAt, operation, err, fields)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.obs.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.obs.metrics,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		TokenStore:        s.tokenStore,
		NonceLedger:       s.nonceLedger,
		HandshakeClient:   s.handshakeClient,
		AccountResolver:   s.accountResolver,
		Scanner:           s.scanner,
		ContentResolver:   s.contentResolver,
		Publisher:         s.publisher,
		Dispatcher:        s.dispatcher,
	}
}

// BeginLink starts the authorization handshake for a user and returns the
// URL the user must visit.
func (s *Service) BeginLink(ctx context.Context, req BeginLinkRequest) (response BeginLinkResponse, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(req.UserID)}
	defer func() {
		s.observe(ctx, startedAt, "begin_link", err, fields)
	}()
	if s == nil || s.handshakeClient == nil {
		return BeginLinkResponse{}, fmt.Errorf("core: service is not configured")
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return BeginLinkResponse{}, s.mapError(NewBadInputError("core: user id is required"))
	}
	callbackURL := strings.TrimSpace(req.CallbackURL)
	if callbackURL == "" {
		callbackURL = s.config.CallbackURL
	}

	start, err := s.handshakeClient.BeginHandshake(ctx, BeginHandshakeRequest{
		UserID:      userID,
		CallbackURL: callbackURL,
	})
	if err != nil {
		return BeginLinkResponse{}, s.mapError(err)
	}
	return BeginLinkResponse{
		AuthorizationURL: start.AuthorizationURL,
		RequestToken:     start.Token.Token,
	}, nil
}

// CompleteLink exchanges an authorized request token, identifies the remote
// account, and stores the link for the user who began the handshake.
func (s *Service) CompleteLink(ctx context.Context, req CompleteLinkRequest) (response CompleteLinkResponse, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observe(ctx, startedAt, "complete_link", err, fields)
	}()
	if s == nil || s.handshakeClient == nil {
		return CompleteLinkResponse{}, fmt.Errorf("core: service is not configured")
	}
	if strings.TrimSpace(req.RequestToken) == "" {
		return CompleteLinkResponse{}, s.mapError(NewInvalidTokenError("core: request token is required"))
	}
	if strings.TrimSpace(req.Verifier) == "" {
		return CompleteLinkResponse{}, s.mapError(NewBadInputError("core: oauth verifier is required"))
	}

	access, err := s.handshakeClient.CompleteHandshake(ctx, req.RequestToken, req.Verifier)
	if err != nil {
		return CompleteLinkResponse{}, s.mapError(err)
	}
	fields["user_id"] = access.UserID
	if strings.TrimSpace(access.UserID) == "" {
		return CompleteLinkResponse{}, s.mapError(NewInvalidTokenError("core: request token is not bound to a user"))
	}

	accountID := strings.TrimSpace(access.ExternalAccountID)
	if accountID == "" {
		accountID, err = s.accountResolver.ResolveAccount(ctx, access)
		if err != nil {
			return CompleteLinkResponse{}, s.mapError(NewHandshakeError("core: account lookup failed", err))
		}
		access.ExternalAccountID = accountID
	}
	fields["external_account_id"] = accountID

	link, err := s.tokenStore.PutAccessLink(ctx, UserServiceLink{
		UserID:            access.UserID,
		ExternalAccountID: accountID,
		AccessToken:       access,
	})
	if err != nil {
		return CompleteLinkResponse{}, s.mapError(err)
	}
	fields["link_id"] = link.ID
	return CompleteLinkResponse{Link: link}, nil
}

func (s *Service) Unlink(ctx context.Context, userID string) (err error) {
	startedAt := time.Now().UTC()
	userID = strings.TrimSpace(userID)
	fields := map[string]any{"user_id": userID}
	defer func() {
		s.observe(ctx, startedAt, "unlink", err, fields)
	}()
	if s == nil || s.tokenStore == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if userID == "" {
		return s.mapError(NewBadInputError("core: user id is required"))
	}
	return s.mapError(s.tokenStore.DeleteAccessLink(ctx, userID))
}

func (s *Service) GetLink(ctx context.Context, userID string) (UserServiceLink, error) {
	if s == nil || s.tokenStore == nil {
		return UserServiceLink{}, fmt.Errorf("core: service is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserServiceLink{}, s.mapError(NewBadInputError("core: user id is required"))
	}
	link, ok, err := s.tokenStore.GetAccessLink(ctx, userID)
	if err != nil {
		return UserServiceLink{}, s.mapError(err)
	}
	if !ok {
		return UserServiceLink{}, NewLinkNotFoundError(userID)
	}
	return link, nil
}

// ProcessText strips directives from text, resolves read directives inline,
// and hands publish directives to the background dispatcher. Resolution
// failures yield an empty result for that directive.
func (s *Service) ProcessText(ctx context.Context, req ProcessTextRequest) (result ProcessResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(req.UserID)}
	defer func() {
		s.observe(ctx, startedAt, "process_text", err, fields)
	}()
	if s == nil || s.scanner == nil {
		return ProcessResult{}, fmt.Errorf("core: service is not configured")
	}
	if err := ctx.Err(); err != nil {
		return ProcessResult{}, err
	}

	scanned := s.scanner.Scan(req.Text)
	fields["directive_count"] = len(scanned.Directives)
	result.Text = scanned.Text
	result.Resolved = s.resolveReads(ctx, scanned.ReadDirectives())

	if directive, ok := scanned.PublishDirective(); ok {
		queued, dispatchErr := s.dispatcher.Dispatch(ctx, req.UserID, *directive.Publish)
		if dispatchErr != nil {
			return result, s.mapError(dispatchErr)
		}
		result.Published = queued
	}
	return result, nil
}

// Resolve fetches the media URLs for a single read payload.
func (s *Service) Resolve(ctx context.Context, payload ReadPayload) (urls []string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"directive_kind": string(DirectiveRead),
		"account":        payload.AccountIdentifier,
		"post_id":        payload.PostID,
	}
	defer func() {
		fields["media_count"] = len(urls)
		s.observe(ctx, startedAt, "resolve_read", err, fields)
	}()
	if s == nil || s.contentResolver == nil {
		return nil, fmt.Errorf("core: service is not configured")
	}
	timeout := s.config.Resolver.Timeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	urls, err = s.contentResolver.Resolve(ctx, payload)
	if err != nil {
		return nil, s.mapError(err)
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

func (s *Service) resolveReads(ctx context.Context, reads []Directive) []ResolvedContent {
	resolved := make([]ResolvedContent, len(reads))
	if len(reads) == 0 {
		return resolved
	}
	limit := s.config.Resolver.Concurrency
	if limit <= 0 {
		limit = 1
	}
	var group errgroup.Group
	group.SetLimit(limit)
	for i, directive := range reads {
		resolved[i] = ResolvedContent{Directive: directive, URLs: []string{}}
		group.Go(func() error {
			urls, err := s.Resolve(ctx, *directive.Read)
			if err != nil {
				return nil
			}
			resolved[i].URLs = urls
			return nil
		})
	}
	_ = group.Wait()
	return resolved
}

// PurgeExpired drops abandoned request tokens and stale nonce claims.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: service is not configured")
	}
	total := 0
	if purger, ok := s.tokenStore.(ExpiredTokenPurger); ok {
		purged, err := purger.PurgeExpired(ctx)
		if err != nil {
			return total, s.mapError(err)
		}
		total += purged
	}
	if purger, ok := s.nonceLedger.(ExpiredTokenPurger); ok {
		purged, err := purger.PurgeExpired(ctx)
		if err != nil {
			return total, s.mapError(err)
		}
		total += purged
	}
	return total, nil
}

// Close drains the publish workers the service started.
func (s *Service) Close(ctx context.Context) error {
	if s == nil || s.ownedDispatcher == nil {
		return nil
	}
	return s.ownedDispatcher.Close(ctx)
}
