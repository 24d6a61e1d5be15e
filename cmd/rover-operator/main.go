package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"rover-link/config"
	rlog "rover-link/log"
	"rover-link/operator"
	"rover-link/protocol"

	"github.com/sirupsen/logrus"
)

const Version = "1.0"

func main() {
	flag.CommandLine.SetOutput(os.Stdout)
	configPathFlag := flag.String("config_path", "configs/operator.yaml", "配置文件路径（YAML）。如果是目录，则默认读取该目录下的 operator.yaml；文件不存在时使用内置默认配置")
	serverAddrFlag := flag.String("server_addr", "", "车端地址（host:port），非空时覆盖配置文件")
	versionFlag := flag.Bool("version", false, "输出版本并退出")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "rover-operator %s\n\n", Version)
		_, _ = fmt.Fprintln(os.Stdout, "用法：")
		_, _ = fmt.Fprintln(os.Stdout, "  rover-operator [--config_path <path>] [--server_addr <host:port>] [--version] [--help]")
		_, _ = fmt.Fprintln(os.Stdout, "\n控制台指令：")
		_, _ = fmt.Fprintln(os.Stdout, "  forward <speed> [steering] | backward <speed> [steering] | stop | status | quit")
		_, _ = fmt.Fprintln(os.Stdout, "\n参数：")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag {
		_, _ = fmt.Fprintln(os.Stdout, Version)
		return
	}

	cfg := loadConfig(resolveConfigPath(*configPathFlag))
	if *serverAddrFlag != "" {
		cfg.Operator.ServerAddr = *serverAddrFlag
	}
	if err := rlog.Init(cfg.Logging); err != nil {
		panic(err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	recv, err := operator.NewReceiver(cfg.Operator.VideoPort, nil)
	if err != nil {
		panic(err)
	}
	go recv.Run()

	client, err := operator.Dial(cfg.Operator.ServerAddr, 5*time.Second)
	if err != nil {
		panic(err)
	}
	if err := client.RegisterVideo(recv.Port()); err != nil {
		panic(err)
	}
	rlog.With(logrus.Fields{
		"server":     cfg.Operator.ServerAddr,
		"video_port": recv.Port(),
	}).Info("指令连接已建立并注册媒体端口")

	go func() {
		_ = client.ReadStatus(func(st protocol.Status) {
			rlog.With(logrus.Fields{
				"battery":  st.Battery,
				"speed":    st.Speed,
				"steering": st.Steering,
			}).Info("车端状态")
		})
	}()

	con := &console{client: client, cancel: cancel}
	con.intent.Store(operator.Intent{Direction: protocol.DirectionStop})
	go con.run()

	senderDone := make(chan error, 1)
	go func() {
		senderDone <- operator.NewSender(cfg.Operator, client, con).Run(ctx)
	}()

	<-ctx.Done()
	if err := <-senderDone; err != nil {
		rlog.L().WithError(err).Warn("指令发送循环异常退出")
	}
	_ = client.Close()
	recv.Stop()
	<-recv.Done()
	rlog.With(logrus.Fields{
		"frames":  recv.Frames(),
		"dropped": recv.Dropped(),
	}).Info("操作端退出")
}

// console 解析标准输入的控制台指令并维护当前运动意图。
type console struct {
	client *operator.Client
	cancel context.CancelFunc
	intent atomic.Value
}

// Sample 返回当前运动意图快照。
func (c *console) Sample() operator.Intent {
	it, _ := c.intent.Load().(operator.Intent)
	return it
}

// run 读取标准输入直到 EOF 或 quit 指令。
func (c *console) run() {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if !c.handle(strings.Fields(strings.TrimSpace(sc.Text()))) {
			return
		}
	}
	c.cancel()
}

// handle 处理一条控制台指令。返回 false 表示应退出读取循环。
func (c *console) handle(fields []string) bool {
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case protocol.DirectionForward, protocol.DirectionBackward:
		it := operator.Intent{Direction: fields[0]}
		if len(fields) > 1 {
			it.Speed, _ = strconv.ParseFloat(fields[1], 64)
		}
		if len(fields) > 2 {
			it.Steering, _ = strconv.ParseFloat(fields[2], 64)
		}
		c.intent.Store(it)
	case "stop":
		c.intent.Store(operator.Intent{Direction: protocol.DirectionStop})
	case "status":
		if err := c.client.RequestStatus(); err != nil {
			rlog.L().WithError(err).Warn("状态请求发送失败")
		}
	case "quit":
		if err := c.client.Quit(); err != nil {
			rlog.L().WithError(err).Warn("退出指令发送失败")
		}
		c.cancel()
		return false
	default:
		_, _ = fmt.Fprintf(os.Stdout, "未知指令：%s\n", fields[0])
	}
	return true
}

// loadConfig 读取配置文件；文件不存在时回落到内置默认配置。
func loadConfig(path string) config.OperatorConfig {
	if _, err := os.Stat(path); err != nil {
		return config.DefaultOperatorConfig()
	}
	cfg, err := config.LoadOperator(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func resolveConfigPath(p string) string {
	if p == "" {
		return "configs/operator.yaml"
	}
	st, err := os.Stat(p)
	if err != nil {
		return p
	}
	if st.IsDir() {
		return filepath.Join(p, "operator.yaml")
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
