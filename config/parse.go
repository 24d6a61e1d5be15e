package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Resolution struct {
	Width  int
	Height int
}

// ParseResolution 解析分辨率字符串（形如 "320x240"）。
// 参数：
// - s: 分辨率字符串
// 返回：
// - Resolution: 宽高
// - error: 解析失败原因
func ParseResolution(s string) (Resolution, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	parts := strings.Split(s, "x")
	if len(parts) != 2 {
		return Resolution{}, fmt.Errorf("invalid resolution: %q", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution width: %q", parts[0])
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution height: %q", parts[1])
	}
	if w <= 0 || h <= 0 || w > 7680 || h > 4320 {
		return Resolution{}, fmt.Errorf("invalid resolution values: %dx%d", w, h)
	}
	return Resolution{Width: w, Height: h}, nil
}

type ByteSize int64

// Int64 返回字节数的 int64 表达。
func (b ByteSize) Int64() int64 { return int64(b) }

// UnmarshalYAML 支持从 YAML 中解析 ByteSize（如 100MB、64KB、1024B）。
// 参数：
// - value: YAML 节点
// 返回：
// - error: 解析失败原因
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*b = 0
		return nil
	}
	v := strings.TrimSpace(value.Value)
	if v == "" {
		*b = 0
		return nil
	}
	n, err := parseByteSize(v)
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

// parseByteSize 解析形如 "100MB"/"64KB" 的字节数文本。
// 参数：
// - s: 字节数文本
// 返回：
// - int64: 字节数
// - error: 解析失败原因
func parseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "KB"):
		mult = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "MB"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "GB"):
		mult = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "B"):
		mult = 1
		s = strings.TrimSuffix(s, "B")
	}
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}
	return int64(f * float64(mult)), nil
}

// DefaultConfig 返回一份可用的车端默认配置（用于未提供配置文件或作为缺省值合并）。
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5051,
			MaxConnections:  16,
			ShutdownTimeout: 5 * time.Second,
		},
		Video: VideoConfig{
			FrameRate:   20,
			Resolution:  "320x240",
			Quality:     50,
			IdleBackoff: 500 * time.Millisecond,
			MaxDatagram: ByteSize(60 * 1024),
		},
		Drive: DriveConfig{
			Mode: "sim",
			L298N: L298NConfig{
				IN1:     17,
				IN2:     27,
				IN3:     23,
				IN4:     24,
				PWMChip: 0,
				PWMFreq: 1000,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "/var/log/rover-server.log",
			MaxSize:  ByteSize(100 * 1024 * 1024),
			MaxAge:   7,
			Compress: true,
		},
	}
}

// DefaultOperatorConfig 返回一份可用的操作端默认配置。
func DefaultOperatorConfig() OperatorConfig {
	return OperatorConfig{
		Operator: OperatorSection{
			ServerAddr:      "127.0.0.1:5051",
			VideoPort:       6000,
			PollInterval:    10 * time.Millisecond,
			MinSendInterval: 50 * time.Millisecond,
			DeltaThreshold:  0.05,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "console",
			FilePath: "/var/log/rover-operator.log",
			MaxSize:  ByteSize(100 * 1024 * 1024),
			MaxAge:   7,
			Compress: true,
		},
	}
}
