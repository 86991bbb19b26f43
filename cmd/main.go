package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"whisper_streaming/internal/config"
	"whisper_streaming/internal/engine"
	"whisper_streaming/internal/engine/whisper"
	"whisper_streaming/internal/logger"
	"whisper_streaming/internal/metrics"
	"whisper_streaming/internal/middleware"
	"whisper_streaming/internal/routes"
	"whisper_streaming/internal/services/ws"
	"whisper_streaming/internal/stream"
)

// CLI 命令行参数，非空时覆盖配置文件
type CLI struct {
	Config   string `short:"c" help:"配置文件路径" type:"path"`
	Model    string `short:"m" help:"whisper模型文件路径"`
	Port     int    `short:"p" help:"监听端口"`
	LogLevel string `help:"日志级别(debug, info, warn, error)"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("whisper-streaming"),
		kong.Description("流式语音识别WebSocket服务"),
	)

	cfg, err := config.Load(cli.Config,
		config.WithModelPath(cli.Model),
		config.WithPort(cli.Port),
		config.WithLogLevel(cli.LogLevel),
	)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("加载配置失败")
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("初始化日志失败")
	}
	log.Info().Msg("流式识别服务启动中...")

	eng, err := whisper.Load(cfg.Model.Path, engine.Params{
		Language:            cfg.Model.Language,
		Threads:             cfg.Model.Threads,
		MaxTokens:           cfg.Model.MaxTokens,
		Translate:           cfg.Model.Translate,
		TemperatureFallback: cfg.Model.TemperatureFallback,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("加载模型失败")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry := stream.NewRegistry(eng, stream.Options{
		SamplesKeep:      cfg.Stream.SamplesKeep(),
		SamplesLen:       cfg.Stream.SamplesLen(),
		CommitInterval:   cfg.Stream.CommitInterval,
		InferenceTimeout: cfg.Stream.InferenceTimeout,
	}, log, m)
	log.Info().
		Int("samples_keep", cfg.Stream.SamplesKeep()).
		Int("samples_len", cfg.Stream.SamplesLen()).
		Int("commit_interval", cfg.Stream.CommitInterval).
		Dur("inference_timeout", cfg.Stream.InferenceTimeout).
		Msg("会话参数")

	asrServer := ws.NewASRServer(cfg, registry, m, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	middleware.Setup(r, log)
	routes.RegisterRoutes(r, asrServer, registry, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("服务开始监听")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("启动服务器失败")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("收到退出信号，开始关闭")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown不跟踪已升级的WebSocket连接，需要单独关闭
	asrServer.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("关闭HTTP服务失败")
	}

	registry.CloseAll()
	if err := eng.Close(); err != nil {
		log.Error().Err(err).Msg("释放模型失败")
	}

	log.Info().Msg("服务已停止")
}
