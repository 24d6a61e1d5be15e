package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load 从 YAML 文件读取并解析车端配置，并做基础校验。
// 参数：
// - path: 配置文件路径
// 返回：
// - Config: 合并默认值后的配置
// - error: 读取/解析/校验失败原因
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 校验车端配置字段合法性（端口、帧率、分辨率、日志输出等）。
// 参数：
// - cfg: 待校验配置
// 返回：
// - error: 校验失败原因
func Validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections <= 0 {
		return fmt.Errorf("invalid server.max_connections: %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid server.shutdown_timeout: %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Video.FrameRate <= 0 || cfg.Video.FrameRate > 120 {
		return fmt.Errorf("invalid video.frame_rate: %v", cfg.Video.FrameRate)
	}
	if _, err := ParseResolution(cfg.Video.Resolution); err != nil {
		return fmt.Errorf("invalid video.resolution: %w", err)
	}
	if cfg.Video.Quality < 1 || cfg.Video.Quality > 100 {
		return fmt.Errorf("invalid video.quality: %d", cfg.Video.Quality)
	}
	if cfg.Video.IdleBackoff <= 0 {
		return fmt.Errorf("invalid video.idle_backoff: %s", cfg.Video.IdleBackoff)
	}
	if cfg.Drive.Mode != "sim" && cfg.Drive.Mode != "l298n" {
		return fmt.Errorf("invalid drive.mode: %q", cfg.Drive.Mode)
	}
	return validateLogging(cfg.Logging)
}

// LoadOperator 从 YAML 文件读取并解析操作端配置，并做基础校验。
// 参数：
// - path: 配置文件路径
// 返回：
// - OperatorConfig: 合并默认值后的配置
// - error: 读取/解析/校验失败原因
func LoadOperator(path string) (OperatorConfig, error) {
	cfg := DefaultOperatorConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return OperatorConfig{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return OperatorConfig{}, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := ValidateOperator(cfg); err != nil {
		return OperatorConfig{}, err
	}
	return cfg, nil
}

// ValidateOperator 校验操作端配置字段合法性。
// 参数：
// - cfg: 待校验配置
// 返回：
// - error: 校验失败原因
func ValidateOperator(cfg OperatorConfig) error {
	if cfg.Operator.ServerAddr == "" {
		return fmt.Errorf("operator.server_addr is required")
	}
	if cfg.Operator.VideoPort <= 0 || cfg.Operator.VideoPort > 65535 {
		return fmt.Errorf("invalid operator.video_port: %d", cfg.Operator.VideoPort)
	}
	if cfg.Operator.PollInterval <= 0 {
		return fmt.Errorf("invalid operator.poll_interval: %s", cfg.Operator.PollInterval)
	}
	if cfg.Operator.MinSendInterval <= 0 {
		return fmt.Errorf("invalid operator.min_send_interval: %s", cfg.Operator.MinSendInterval)
	}
	if cfg.Operator.DeltaThreshold < 0 || cfg.Operator.DeltaThreshold >= 1 {
		return fmt.Errorf("invalid operator.delta_threshold: %v", cfg.Operator.DeltaThreshold)
	}
	return validateLogging(cfg.Logging)
}

// validateLogging 校验日志配置并补齐缺省值。
func validateLogging(lc LoggingConfig) error {
	if lc.Output == "file" && lc.FilePath == "" {
		return fmt.Errorf("logging.file_path is required when output=file")
	}
	return nil
}
