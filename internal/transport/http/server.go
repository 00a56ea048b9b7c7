package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"loomgraph/internal/cache"
	"loomgraph/internal/config"
	"loomgraph/internal/database"
	"loomgraph/internal/handler"
	"loomgraph/internal/logger"
	"loomgraph/internal/queue"
	"loomgraph/internal/redis"
	"loomgraph/internal/repository"
	"loomgraph/internal/service"
	"loomgraph/internal/worker"
)

const shutdownTimeout = 15 * time.Second

// Run wires the whole application together and blocks until the
// process receives SIGINT or SIGTERM, then drains in-flight requests
// and stops the feed workers before returning.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Env); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := database.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	defer driver.Close(context.Background())

	if err := database.EnsureSchema(ctx, driver); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	userRepo := repository.NewUserRepository(driver)
	postRepo := repository.NewPostRepository(driver)
	commentRepo := repository.NewCommentRepository(driver)
	groupRepo := repository.NewGroupRepository(driver)
	hashtagRepo := repository.NewHashtagRepository(driver)
	notifRepo := repository.NewNotificationRepository(driver)
	tokenRepo := repository.NewTokenRepository(redisClient, time.Duration(cfg.RefreshTokenMaxAge)*time.Second)

	feedCache := cache.NewFeedCache(redisClient)
	publisher := queue.NewPublisher(redisClient)
	consumer := queue.NewConsumer(redisClient)

	notifService := service.NewNotificationService(notifRepo, userRepo)
	authService := service.NewAuthService(tokenRepo, cfg)
	userService := service.NewUserService(userRepo, notifService, publisher)
	postService := service.NewPostService(postRepo, userRepo, groupRepo, notifService, publisher)
	commentService := service.NewCommentService(commentRepo, postService, userRepo, notifService)
	groupService := service.NewGroupService(groupRepo, userRepo, notifService)
	feedService := service.NewFeedService(feedCache, postRepo)
	hashtagService := service.NewHashtagService(hashtagRepo)

	mediaService, err := service.NewMediaService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to init media service: %w", err)
	}

	workerCfg := worker.DefaultManagerConfig()
	workerCfg.WorkerCount = cfg.WorkerCount
	manager := worker.NewManager(consumer, worker.NewHandler(feedCache, userRepo, postRepo), workerCfg)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start feed workers: %w", err)
	}

	router := NewRouter(RouterConfig{
		AuthHandler:         handler.NewAuthHandler(userService, authService),
		UserHandler:         handler.NewUserHandler(userService, mediaService),
		FollowHandler:       handler.NewFollowHandler(userService),
		PostHandler:         handler.NewPostHandler(postService),
		CommentHandler:      handler.NewCommentHandler(commentService),
		GroupHandler:        handler.NewGroupHandler(groupService, postService),
		FeedHandler:         handler.NewFeedHandler(feedService),
		MediaHandler:        handler.NewMediaHandler(mediaService),
		NotificationHandler: handler.NewNotificationHandler(notifService),
		HashtagHandler:      handler.NewHashtagHandler(hashtagService),
		JWTSecret:           cfg.JWTSecret,
	})

	srv := &stdhttp.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		manager.Stop()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown did not finish cleanly", zap.Error(err))
	}
	manager.Stop()

	return nil
}
