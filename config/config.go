package config

import "time"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Video   VideoConfig   `yaml:"video"`
	Drive   DriveConfig   `yaml:"drive"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	MaxConnections  int           `yaml:"max_connections"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type VideoConfig struct {
	FrameRate   float64       `yaml:"frame_rate"`
	Resolution  string        `yaml:"resolution"`
	Quality     int           `yaml:"quality"`
	IdleBackoff time.Duration `yaml:"idle_backoff"`
	MaxDatagram ByteSize      `yaml:"max_datagram"`
}

type DriveConfig struct {
	Mode  string      `yaml:"mode"`
	L298N L298NConfig `yaml:"l298n"`
}

type L298NConfig struct {
	IN1     int `yaml:"in1"`
	IN2     int `yaml:"in2"`
	IN3     int `yaml:"in3"`
	IN4     int `yaml:"in4"`
	PWMChip int `yaml:"pwm_chip"`
	PWMFreq int `yaml:"pwm_freq"`
}

type LoggingConfig struct {
	Level    string   `yaml:"level"`
	Format   string   `yaml:"format"`
	Output   string   `yaml:"output"`
	FilePath string   `yaml:"file_path"`
	MaxSize  ByteSize `yaml:"max_size"`
	MaxAge   int      `yaml:"max_age"`
	Compress bool     `yaml:"compress"`
}

type OperatorConfig struct {
	Operator OperatorSection `yaml:"operator"`
	Logging  LoggingConfig   `yaml:"logging"`
}

type OperatorSection struct {
	ServerAddr      string        `yaml:"server_addr"`
	VideoPort       int           `yaml:"video_port"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MinSendInterval time.Duration `yaml:"min_send_interval"`
	DeltaThreshold  float64       `yaml:"delta_threshold"`
}
