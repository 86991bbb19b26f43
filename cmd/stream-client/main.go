package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"whisper_streaming/internal/audio"
	"whisper_streaming/internal/clients/ws"
	"whisper_streaming/internal/types"
)

// CLI 命令行参数
type CLI struct {
	File     string        `arg:"" help:"16kHz单声道WAV文件" type:"existingfile"`
	URL      string        `short:"u" default:"ws://127.0.0.1:9002/" help:"服务地址"`
	StepMs   int           `default:"3000" help:"每次发送的音频长度(毫秒)"`
	Realtime bool          `help:"按实时速度发送"`
	Timeout  time.Duration `default:"60s" help:"等待每条响应的超时"`
	Verbose  bool          `short:"v" help:"打印调试日志"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("stream-client"),
		kong.Description("把WAV文件分段发送到流式识别服务并打印结果"),
	)

	level := zerolog.InfoLevel
	if cli.Verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
		Level(level).With().Timestamp().Logger()

	kctx.FatalIfErrorf(run(cli, log))
}

func run(cli CLI, log zerolog.Logger) error {
	f, err := os.Open(cli.File)
	if err != nil {
		return fmt.Errorf("打开音频文件失败: %w", err)
	}
	defer f.Close()

	clip, err := audio.ReadWAV(f)
	if err != nil {
		return err
	}
	if clip.SampleRate != 16000 {
		log.Warn().Int("sample_rate", clip.SampleRate).Msg("服务端按16kHz处理音频")
	}
	log.Info().
		Str("file", cli.File).
		Int("samples", len(clip.Samples)).
		Float64("duration_s", clip.Duration()).
		Msg("音频读取完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := ws.NewClient(ws.Config{URL: cli.URL, ReadWait: cli.Timeout})
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	chunk := max(1, cli.StepMs*clip.SampleRate/1000)
	var interval time.Duration
	if cli.Realtime {
		interval = time.Duration(cli.StepMs) * time.Millisecond
	}

	var last *types.Response
	err = client.Stream(ctx, clip.Samples, chunk, interval, func(resp *types.Response, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("本段识别失败")
			return
		}
		last = resp
		log.Debug().Int("segments", len(resp.Result)).Msg("收到结果")
		if n := len(resp.Result); n > 0 {
			fmt.Printf("> %s\n", strings.TrimSpace(resp.Result[n-1]))
		}
	})
	if err != nil {
		return err
	}

	if last != nil {
		fmt.Println(strings.TrimSpace(strings.Join(last.Result, " ")))
	}
	return nil
}
