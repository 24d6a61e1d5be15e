package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"rover-link/camera"
	"rover-link/config"
	"rover-link/drive"
	rlog "rover-link/log"
	"rover-link/vehicle"

	"github.com/sirupsen/logrus"
)

const Version = "1.0"

func main() {
	flag.CommandLine.SetOutput(os.Stdout)
	configPathFlag := flag.String("config_path", "configs/config.yaml", "配置文件路径（YAML）。如果是目录，则默认读取该目录下的 config.yaml；文件不存在时使用内置默认配置")
	versionFlag := flag.Bool("version", false, "输出版本并退出")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "rover-server %s\n\n", Version)
		_, _ = fmt.Fprintln(os.Stdout, "用法：")
		_, _ = fmt.Fprintln(os.Stdout, "  rover-server [--config_path <path>] [--version] [--help]")
		_, _ = fmt.Fprintln(os.Stdout, "\n参数：")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag {
		_, _ = fmt.Fprintln(os.Stdout, Version)
		return
	}

	cfg := loadConfig(resolveConfigPath(*configPathFlag))
	if err := rlog.Init(cfg.Logging); err != nil {
		panic(err)
	}

	ctrl, err := drive.New(cfg.Drive)
	if err != nil {
		panic(err)
	}

	res, err := config.ParseResolution(cfg.Video.Resolution)
	if err != nil {
		panic(err)
	}

	sender, err := net.ListenUDP("udp", nil)
	if err != nil {
		panic(err)
	}

	reg := vehicle.NewRegistry()
	streamer, err := vehicle.NewStreamer(cfg.Video, camera.NewSimSource(res.Width, res.Height), reg, sender)
	if err != nil {
		panic(err)
	}
	srv := vehicle.NewServer(cfg, ctrl, reg, streamer)

	ctx, cancel := signalContext()
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			rlog.L().WithError(err).Error("服务启动失败")
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	srv.Shutdown()
	if !srv.Wait(cfg.Server.ShutdownTimeout) {
		rlog.With(logrus.Fields{"status": "force_exit"}).Warn("停机超时，强制退出")
	}
	_ = ctrl.Close()
	_ = sender.Close()
}

// loadConfig 读取配置文件；文件不存在时回落到内置默认配置。
func loadConfig(path string) config.Config {
	if _, err := os.Stat(path); err != nil {
		return config.DefaultConfig()
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func resolveConfigPath(p string) string {
	if p == "" {
		return "configs/config.yaml"
	}
	st, err := os.Stat(p)
	if err != nil {
		return p
	}
	if st.IsDir() {
		return filepath.Join(p, "config.yaml")
	}
	return p
}

// signalContext 创建一个可被 SIGINT/SIGTERM 取消的 Context。
// 返回：
// - ctx: 监听信号并在收到信号时取消的上下文
// - cancel: 主动取消函数
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
