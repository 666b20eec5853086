// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// 默认值
const (
	DefaultProvider          = "google"
	DefaultModel             = "gemini-2.5-flash"
	DefaultGenerationTimeout = 5 * time.Minute
	DefaultChatTimeout       = 2 * time.Minute
	DefaultAnalyzingDelay    = 800 * time.Millisecond
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	LogLevel  string `json:"log_level"`
	DebugMode bool   `json:"debug_mode"`

	// 超时与节奏
	GenerationTimeout time.Duration `json:"generation_timeout"`
	ChatTimeout       time.Duration `json:"chat_timeout"`
	AnalyzingDelay    time.Duration `json:"analyzing_delay"`

	// LLM相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`

	// 加密 llm_config.api_key 用的密钥，不落盘
	EncryptionKey string `json:"-"`
}

// Config 存储从环境变量读到的配置
type Config struct {
	Port              string
	DataDir           string
	LogDir            string
	LogLevel          string
	DebugMode         bool
	GeminiAPIKey      string
	GeminiBaseURL     string
	LLMProvider       string
	LLMModel          string
	GenerationTimeout time.Duration
	ChatTimeout       time.Duration
	AnalyzingDelay    time.Duration
	EncryptionKey     string
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		DataDir:           getEnvPath("DATA_DIR", "data"),
		LogDir:            getEnvPath("LOG_DIR", "logs"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DebugMode:         getEnvBool("DEBUG_MODE", false),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", ""),
		LLMProvider:       getEnv("LLM_PROVIDER", DefaultProvider),
		LLMModel:          getEnv("LLM_MODEL", DefaultModel),
		GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", DefaultGenerationTimeout),
		ChatTimeout:       getEnvDuration("CHAT_TIMEOUT", DefaultChatTimeout),
		AnalyzingDelay:    getEnvDuration("ANALYZING_DELAY", DefaultAnalyzingDelay),
		EncryptionKey:     getEnv("CONFIG_ENCRYPTION_KEY", ""),
	}

	if config.GeminiAPIKey == "" {
		// 只记录警告，生成时才会报配置错误
		log.Println("警告: 未设置GEMINI_API_KEY，需要通过 /api/llm/config 配置后才能生成素材")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则创建
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvDuration 支持 "90s" 这样的写法，也接受纯数字（毫秒）
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		return d
	}

	var ms int64
	if _, err := fmt.Sscanf(value, "%d", &ms); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}

	log.Printf("警告: %s=%q 无法解析，使用默认值 %s", key, value, defaultValue)
	return defaultValue
}

// FromEnv 只根据环境变量构造配置，不读写 config.json
func FromEnv() *AppConfig {
	baseConfig, _ := Load()
	return fromBase(baseConfig)
}

func fromBase(baseConfig *Config) *AppConfig {
	llmConfig := map[string]string{
		"api_key":       baseConfig.GeminiAPIKey,
		"default_model": baseConfig.LLMModel,
	}
	if baseConfig.GeminiBaseURL != "" {
		llmConfig["base_url"] = baseConfig.GeminiBaseURL
	}

	return &AppConfig{
		Port:              baseConfig.Port,
		DataDir:           baseConfig.DataDir,
		LogDir:            baseConfig.LogDir,
		LogLevel:          baseConfig.LogLevel,
		DebugMode:         baseConfig.DebugMode,
		GenerationTimeout: baseConfig.GenerationTimeout,
		ChatTimeout:       baseConfig.ChatTimeout,
		AnalyzingDelay:    baseConfig.AnalyzingDelay,
		LLMProvider:       baseConfig.LLMProvider,
		LLMConfig:         llmConfig,
		EncryptionKey:     baseConfig.EncryptionKey,
	}
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = fromBase(baseConfig)

	// 尝试从文件加载已保存的LLM配置，其它字段以环境变量为准
	if data, err := os.ReadFile(configFile); err == nil {
		var saved AppConfig
		if json.Unmarshal(data, &saved) == nil && saved.LLMProvider != "" {
			merged := copyMap(saved.LLMConfig)
			if encrypted := merged["api_key"]; encrypted != "" && baseConfig.EncryptionKey != "" {
				if plain, err := utils.DecryptSecret(encrypted, baseConfig.EncryptionKey); err == nil {
					merged["api_key"] = plain
				} else {
					log.Printf("警告: 解密已保存的API密钥失败: %v", err)
					merged["api_key"] = ""
				}
			}
			// 如果文件中没有API密钥，使用环境变量的密钥
			if merged["api_key"] == "" {
				merged["api_key"] = baseConfig.GeminiAPIKey
			}
			currentConfig.LLMProvider = saved.LLMProvider
			currentConfig.LLMConfig = merged
		}
	}

	return saveLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 没有初始化时直接使用环境变量
		return FromEnv()
	}

	configCopy := *currentConfig
	configCopy.LLMConfig = copyMap(currentConfig.LLMConfig)
	return &configCopy
}

// APIKey 当前生效的 API 密钥
func (c *AppConfig) APIKey() string {
	if c == nil || c.LLMConfig == nil {
		return ""
	}
	return strings.TrimSpace(c.LLMConfig["api_key"])
}

// UpdateLLMConfig 更新LLM配置并保存
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = copyMap(config)

	return saveLocked()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveLocked()
}

func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}
	if configFile == "" {
		return nil
	}

	dir := filepath.Dir(configFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	onDisk := *currentConfig
	onDisk.LLMConfig = copyMap(currentConfig.LLMConfig)
	if key := onDisk.LLMConfig["api_key"]; key != "" {
		if currentConfig.EncryptionKey != "" {
			encrypted, err := utils.EncryptSecret(key, currentConfig.EncryptionKey)
			if err != nil {
				return fmt.Errorf("加密API密钥失败: %w", err)
			}
			onDisk.LLMConfig["api_key"] = encrypted
		} else {
			// 没有加密密钥时不把明文写到磁盘
			delete(onDisk.LLMConfig, "api_key")
		}
	}

	data, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0600)
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// resetForTest 清空单例
func resetForTest() {
	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = nil
	configFile = ""
}
