package vehicle

import (
	"net"
	"sync"
)

// Target 是当前媒体帧的投递目的地。
type Target struct {
	Host string
	Port int
}

// UDPAddr 返回目的地的 UDP 地址表达。
func (t Target) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(t.Host), Port: t.Port}
}

// Registry 持有系统内唯一的已注册媒体目标，并记录注册归属的连接。
// 约定：
// - 任意时刻至多一个目标；重复注册整体替换旧值（含归属）
// - Set/Get/Clear/ClearOwner 互斥串行，读方不会观察到半写状态
// - 注册不校验目标可达性，发送失败由媒体环自行容忍
type Registry struct {
	mu     sync.Mutex
	target *Target
	owner  string
}

// NewRegistry 创建空的媒体目标注册表。
func NewRegistry() *Registry { return &Registry{} }

// Set 安装新的媒体目标，无条件替换旧值。
// 参数：
// - owner: 注册方连接标识（用于断连时精确注销）
// - t: 媒体目标
func (r *Registry) Set(owner string, t Target) {
	r.mu.Lock()
	r.target = &t
	r.owner = owner
	r.mu.Unlock()
}

// Get 返回当前媒体目标。
// 返回：
// - Target: 目标副本
// - bool: 是否存在已注册目标
func (r *Registry) Get() (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.target == nil {
		return Target{}, false
	}
	return *r.target, true
}

// Clear 无条件移除当前目标（幂等）。
func (r *Registry) Clear() {
	r.mu.Lock()
	r.target = nil
	r.owner = ""
	r.mu.Unlock()
}

// ClearOwner 仅当当前目标由指定连接注册时才移除（断连注销路径）。
// 参数：
// - owner: 连接标识
// 返回：
// - bool: 是否发生了移除
func (r *Registry) ClearOwner(owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.target == nil || r.owner != owner {
		return false
	}
	r.target = nil
	r.owner = ""
	return true
}
