package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"judger/internal/common/cache"
	commonmw "judger/internal/common/http/middleware"
	"judger/internal/common/mq"
	"judger/internal/common/storage"
	judgecache "judger/internal/judge/cache"
	"judger/internal/judge/callback"
	"judger/internal/judge/controller"
	"judger/internal/judge/dataset"
	"judger/internal/judge/reaper"
	"judger/internal/judge/repository"
	"judger/internal/judge/sandbox"
	"judger/internal/judge/sandbox/engine"
	"judger/internal/judge/sandbox/observer"
	"judger/internal/judge/sandbox/profile"
	"judger/internal/judge/sandbox/runner"
	"judger/internal/judge/service"
	"judger/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConfigPath = "configs/judge_server.yaml"
	defaultEnvFile    = ".env"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envFile := flag.String("env", defaultEnvFile, "Optional dotenv file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "judge server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	bootCtx := context.Background()
	for _, dir := range []string{appCfg.Judge.DataDir, appCfg.Judge.TmpDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s failed: %w", dir, err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observer.NewPrometheusRecorder(registry)
	if err != nil {
		return fmt.Errorf("init metrics failed: %w", err)
	}

	eng, err := engine.NewEngine(appCfg.Sandbox.Engine)
	if err != nil {
		return fmt.Errorf("init sandbox engine failed: %w", err)
	}
	resolver := profile.NewResolver(appCfg.Languages)
	jobRunner := runner.NewRunner(eng, resolver, metrics, appCfg.Sandbox.Process)

	datasets, closeDatasets, err := buildDatasetSource(bootCtx, appCfg, jobRunner)
	if err != nil {
		return err
	}
	defer closeDatasets()

	publisher, closePublisher, err := buildVerdictPublisher(bootCtx, appCfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	worker := sandbox.NewWorker(jobRunner, resolver, datasets, metrics)
	dispatcher := callback.NewDispatcher(appCfg.Callback, metrics)
	judgeSvc, err := service.NewService(service.Config{
		Judger:           worker,
		Deliverer:        dispatcher,
		Publisher:        publisher,
		TmpRoot:          appCfg.Judge.TmpDir,
		JudgePoolSize:    appCfg.Pool.JudgeSize,
		CallbackPoolSize: appCfg.Pool.CallbackSize,
		JobTimeout:       appCfg.Judge.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("init judge service failed: %w", err)
	}

	httpServer := buildHTTPServer(appCfg, judgeSvc, registry)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		logger.Info(groupCtx, "judge http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("data_dir", appCfg.Judge.DataDir),
			zap.String("tmp_dir", appCfg.Judge.TmpDir),
		)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return reaper.New(appCfg.Judge.TmpDir, appCfg.Reaper).Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(context.Background(), "shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error(ctx, "http server shutdown failed", zap.Error(err))
		}
		if err := judgeSvc.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "judge service shutdown incomplete", zap.Error(err))
		}
		return nil
	})
	return group.Wait()
}

// buildDatasetSource returns the remote-synchronized dataset cache when MinIO
// is configured, the plain data directory otherwise.
func buildDatasetSource(ctx context.Context, appCfg *AppConfig, compiler dataset.Compiler) (dataset.Source, func(), error) {
	local := dataset.LocalSource{Root: appCfg.Judge.DataDir}
	if !appCfg.Dataset.MinIO.Enabled() {
		return local, func() {}, nil
	}

	objStorage, err := storage.NewMinIOStorage(appCfg.Dataset.MinIO)
	if err != nil {
		return nil, nil, fmt.Errorf("init minio failed: %w", err)
	}
	lock, err := cache.NewRedisLockWithConfig(&appCfg.Dataset.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis failed: %w", err)
	}
	syncCfg := appCfg.Dataset.Sync
	if syncCfg.Bucket == "" {
		syncCfg.Bucket = appCfg.Dataset.MinIO.Bucket
	}
	prepare := func(ctx context.Context, dir string) error {
		return dataset.PrepareSpecialJudge(ctx, compiler, dir)
	}
	logger.Info(ctx, "remote dataset sync enabled",
		zap.String("endpoint", appCfg.Dataset.MinIO.Endpoint),
		zap.String("bucket", syncCfg.Bucket),
	)
	source := judgecache.NewDatasetCache(appCfg.Judge.DataDir, syncCfg, objStorage, lock, prepare)
	return source, func() { _ = lock.Close() }, nil
}

// buildVerdictPublisher returns nil when the Kafka mirror is not configured.
func buildVerdictPublisher(ctx context.Context, appCfg *AppConfig) (repository.VerdictEventPublisher, func(), error) {
	if !appCfg.Kafka.Enabled() {
		return nil, func() {}, nil
	}
	producer, err := mq.NewKafkaProducer(appCfg.Kafka.KafkaConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("init kafka failed: %w", err)
	}
	if err := producer.Ping(ctx); err != nil {
		logger.Warn(ctx, "kafka not reachable, verdict mirror may lag", zap.Error(err))
	}
	publisher := repository.NewMQVerdictEventPublisher(producer, appCfg.Kafka.VerdictTopic)
	return publisher, func() { _ = producer.Close() }, nil
}

func buildHTTPServer(appCfg *AppConfig, judgeSvc *service.Service, registry *prometheus.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	controller.NewJudgeController(judgeSvc).Register(router)
	if !appCfg.Metrics.Disabled {
		router.GET(appCfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	}

	return &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}
}
