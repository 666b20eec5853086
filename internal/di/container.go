// internal/di/container.go
package di

import (
	"io"
	"sync"
)

// 容器中的服务名称
const (
	ServiceLLM        = "llm"
	ServiceTranscript = "transcript"
	ServiceAssets     = "assets"
	ServiceChat       = "chat"
	ServiceProgress   = "progress"
	ServiceProject    = "project"
	ServiceConfig     = "config"
	ServiceExport     = "export"
	ServiceStorage    = "storage"
	ServiceMetrics    = "metrics"
	ServiceStats      = "stats"
)

// Container 是一个简单的依赖注入容器
type Container struct {
	services map[string]interface{}
	order    []string // 注册顺序，关闭时倒序
	mutex    sync.RWMutex
}

// 全局容器实例（单例模式）
var (
	globalContainer *Container
	once            sync.Once
)

// NewContainer 创建一个新的依赖注入容器
func NewContainer() *Container {
	return &Container{
		services: make(map[string]interface{}),
	}
}

// GetContainer 获取全局容器实例
func GetContainer() *Container {
	once.Do(func() {
		globalContainer = NewContainer()
	})
	return globalContainer
}

// Register 在容器中注册一个服务实例，同名覆盖
func (c *Container) Register(name string, service interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.services[name]; !exists {
		c.order = append(c.order, name)
	}
	c.services[name] = service
}

// Get 从容器中获取一个服务实例
func (c *Container) Get(name string) interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.services[name]
}

// Resolve 按类型取服务
func Resolve[T any](c *Container, name string) (T, bool) {
	service, ok := c.Get(name).(T)
	return service, ok
}

// Has 检查容器中是否存在指定名称的服务
func (c *Container) Has(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, exists := c.services[name]
	return exists
}

// Clear 清空容器中的所有服务
func (c *Container) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.services = make(map[string]interface{})
	c.order = nil
}

// GetNames 按注册顺序返回服务名称
func (c *Container) GetNames() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return append([]string(nil), c.order...)
}

// CloseAll 倒序关闭实现了 io.Closer 的服务，返回第一个错误
func (c *Container) CloseAll() error {
	c.mutex.RLock()
	names := append([]string(nil), c.order...)
	services := make(map[string]interface{}, len(c.services))
	for k, v := range c.services {
		services[k] = v
	}
	c.mutex.RUnlock()

	var firstErr error
	for i := len(names) - 1; i >= 0; i-- {
		closer, ok := services[names[i]].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
