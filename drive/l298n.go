package drive

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"rover-link/config"
	rlog "rover-link/log"

	"github.com/sirupsen/logrus"
)

const (
	gpioRoot = "/sys/class/gpio"
	pwmRoot  = "/sys/class/pwm"

	// 低于该幅值的指令视为停转，避免电机在死区内持续吸电流。
	motorEpsilon = 0.01
)

// L298N 通过 L298N 双 H 桥驱动两台直流电机：
// - 电机 A（行进）：方向脚 IN1/IN2，占空比走 pwm 通道 0
// - 电机 B（转向）：方向脚 IN3/IN4，占空比走 pwm 通道 1
// 引脚与 pwmchip 通过 sysfs 内核接口访问。sysfs 树缺失时（开发机），
// 所有硬件写入降级为日志记录，其余行为不变。
type L298N struct {
	cfg config.L298NConfig

	mu    sync.Mutex
	state State

	available bool
	periodNS  int64
	pwmA      string
	pwmB      string
}

// NewL298N 创建 L298N 执行机构并初始化 sysfs 引脚与 PWM 通道。
// 硬件接口不可用时返回降级实例（写入变为 no-op，仅日志提示一次）。
// 参数：
// - cfg: 引脚与 PWM 配置
func NewL298N(cfg config.L298NConfig) *L298N {
	freq := cfg.PWMFreq
	if freq <= 0 {
		freq = 1000
	}
	c := &L298N{
		cfg:      cfg,
		periodNS: int64(1e9) / int64(freq),
		pwmA:     filepath.Join(pwmRoot, fmt.Sprintf("pwmchip%d", cfg.PWMChip), "pwm0"),
		pwmB:     filepath.Join(pwmRoot, fmt.Sprintf("pwmchip%d", cfg.PWMChip), "pwm1"),
	}
	if err := c.setup(); err != nil {
		rlog.With(logrus.Fields{"status": "hardware_unavailable"}).WithError(err).Warn("L298N 硬件接口不可用，执行机构降级为记录模式")
		c.available = false
		return c
	}
	c.available = true
	rlog.With(logrus.Fields{
		"in1": cfg.IN1, "in2": cfg.IN2, "in3": cfg.IN3, "in4": cfg.IN4,
		"pwm_chip": cfg.PWMChip, "period_ns": c.periodNS,
	}).Info("L298N 硬件接口初始化完成")
	return c
}

// setup 导出 GPIO 方向脚与 PWM 通道并设置初始状态。
func (c *L298N) setup() error {
	for _, pin := range []int{c.cfg.IN1, c.cfg.IN2, c.cfg.IN3, c.cfg.IN4} {
		if err := exportGPIO(pin); err != nil {
			return err
		}
	}
	chip := filepath.Join(pwmRoot, fmt.Sprintf("pwmchip%d", c.cfg.PWMChip))
	for ch, dir := range map[int]string{0: c.pwmA, 1: c.pwmB} {
		if err := exportPWM(chip, ch, dir); err != nil {
			return err
		}
		if err := writeSysfs(filepath.Join(dir, "period"), fmt.Sprintf("%d", c.periodNS)); err != nil {
			return err
		}
		if err := writeSysfs(filepath.Join(dir, "duty_cycle"), "0"); err != nil {
			return err
		}
		if err := writeSysfs(filepath.Join(dir, "enable"), "1"); err != nil {
			return err
		}
	}
	return nil
}

// Apply 将运动意图转换为两台电机的方向与占空比。
// 参数：
// - m: 规范化运动意图
func (c *L298N) Apply(m Motion) {
	c.mu.Lock()
	if m.Direction == Stop {
		c.state = State{}
	} else {
		c.state = State{Speed: m.Speed, Steering: m.Steering}
	}
	st := c.state
	c.mu.Unlock()

	forward := m.Direction != Backward
	if m.Direction == Stop || st.Speed < motorEpsilon {
		c.setMotor(c.cfg.IN1, c.cfg.IN2, c.pwmA, 0, true)
	} else {
		c.setMotor(c.cfg.IN1, c.cfg.IN2, c.pwmA, st.Speed, forward)
	}

	steer := st.Steering
	if m.Direction == Stop || steer > -motorEpsilon && steer < motorEpsilon {
		c.setMotor(c.cfg.IN3, c.cfg.IN4, c.pwmB, 0, true)
	} else if steer > 0 {
		c.setMotor(c.cfg.IN3, c.cfg.IN4, c.pwmB, steer, true)
	} else {
		c.setMotor(c.cfg.IN3, c.cfg.IN4, c.pwmB, -steer, false)
	}
}

// Halt 应用零运动（停车）。
func (c *L298N) Halt() { c.Apply(Motion{Direction: Stop}) }

// State 返回最近一次应用后的执行状态快照。
func (c *L298N) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close 停转两台电机并关闭 PWM 输出。
func (c *L298N) Close() error {
	c.Halt()
	if !c.available {
		return nil
	}
	for _, dir := range []string{c.pwmA, c.pwmB} {
		_ = writeSysfs(filepath.Join(dir, "enable"), "0")
	}
	return nil
}

// setMotor 设置单台电机的 H 桥极性与 PWM 占空比。
// 参数：
// - inA/inB: 方向脚 GPIO 编号
// - pwmDir: PWM 通道 sysfs 目录
// - duty: 占空比幅值（0~1）
// - forward: 极性（true 则 inA 高 inB 低）
func (c *L298N) setMotor(inA, inB int, pwmDir string, duty float64, forward bool) {
	if !c.available {
		rlog.With(logrus.Fields{
			"in_a": inA, "in_b": inB, "duty": duty, "forward": forward,
		}).Debug("硬件不可用，丢弃电机写入")
		return
	}
	hi, lo := inA, inB
	if !forward {
		hi, lo = inB, inA
	}
	c.sysfsWrite(gpioValuePath(hi), "1")
	c.sysfsWrite(gpioValuePath(lo), "0")
	c.sysfsWrite(filepath.Join(pwmDir, "duty_cycle"), fmt.Sprintf("%d", int64(duty*float64(c.periodNS))))
}

// sysfsWrite 执行一次硬件写入，失败仅记录日志（单次写失败不应中断控制流）。
func (c *L298N) sysfsWrite(path, v string) {
	if err := writeSysfs(path, v); err != nil {
		rlog.With(logrus.Fields{"path": path, "status": "sysfs_write_error"}).WithError(err).Warn("电机控制写入失败")
	}
}

// exportGPIO 导出一个 GPIO 引脚并设置为输出（已导出则直接复用）。
func exportGPIO(pin int) error {
	dir := filepath.Join(gpioRoot, fmt.Sprintf("gpio%d", pin))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := writeSysfs(filepath.Join(gpioRoot, "export"), fmt.Sprintf("%d", pin)); err != nil {
			return err
		}
	}
	return writeSysfs(filepath.Join(dir, "direction"), "out")
}

// exportPWM 导出 pwmchip 下的一个通道（已导出则直接复用）。
func exportPWM(chip string, channel int, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := writeSysfs(filepath.Join(chip, "export"), fmt.Sprintf("%d", channel)); err != nil {
			return err
		}
	}
	return nil
}

// gpioValuePath 返回 GPIO 引脚的 value 文件路径。
func gpioValuePath(pin int) string {
	return filepath.Join(gpioRoot, fmt.Sprintf("gpio%d", pin), "value")
}

// writeSysfs 向 sysfs 文件写入一个字符串值。
func writeSysfs(path, v string) error {
	return os.WriteFile(path, []byte(v), 0o644)
}
