package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/z-debate/backend/internal/llm/gmi"
)

const (
	ProviderGMI = "gmi"
	ProviderArk = "ark"
)

// ErrMissingCredential 表示所选模型提供方缺少 API 凭证，服务无法启动。
var ErrMissingCredential = gmi.ErrMissingCredential

// IsEmptyCompletion reports whether err is a provider's "no choices" answer.
func IsEmptyCompletion(err error) bool {
	return errors.Is(err, gmi.ErrNoChoices) || errors.Is(err, ark.ErrEmptyResponse)
}

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Catalog CatalogConfig
	Debate  DebateConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	debate, err := loadDebateConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Catalog: CatalogConfig{Path: strings.TrimSpace(os.Getenv("CATALOG_FILE"))},
		Debate:  debate,
		Log:     logCfg,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址与跨域来源。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5000"
	}

	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":5000" 或 "127.0.0.1:5000"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	ArkAPIKey    string
	ArkAccessKey string
	ArkSecretKey string
	ArkModel     string
	ArkBaseURL   string
	ArkRegion    string
}

// Enabled 表示所选提供方是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.ArkModel != "" && (c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != ""))
	default:
		return c.APIKey != ""
	}
}

// ModelName 返回当前提供方使用的模型标识。
func (c AIConfig) ModelName() string {
	if c.Provider == ProviderArk {
		return c.ArkModel
	}
	return c.Model
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context, logger *log.Logger) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s provider: %w", c.Provider, ErrMissingCredential)
	}

	switch c.Provider {
	case ProviderArk:
		temperature := float32(c.Temperature)
		maxTokens := c.MaxTokens
		// 一轮只发一次请求，重试交给调用方。
		retryTimes := 0
		arkCfg := &ark.ChatModelConfig{
			BaseURL:     c.ArkBaseURL,
			Region:      c.ArkRegion,
			APIKey:      c.ArkAPIKey,
			AccessKey:   c.ArkAccessKey,
			SecretKey:   c.ArkSecretKey,
			Model:       c.ArkModel,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			RetryTimes:  &retryTimes,
		}
		if c.Timeout > 0 {
			timeout := c.Timeout
			arkCfg.Timeout = &timeout
		}
		chatModel, err := ark.NewChatModel(ctx, arkCfg)
		if err != nil {
			return nil, fmt.Errorf("create ark chat model: %w", err)
		}
		return chatModel, nil
	default:
		temperature := float32(c.Temperature)
		chatModel, err := gmi.NewChatModel(gmi.Config{
			APIKey:      c.APIKey,
			Endpoint:    c.BaseURL,
			Model:       c.Model,
			Temperature: &temperature,
			MaxTokens:   c.MaxTokens,
			HTTPClient:  &http.Client{Timeout: c.Timeout},
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return chatModel, nil
	}
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderGMI))
	if provider != ProviderGMI && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q: expected %q or %q", provider, ProviderGMI, ProviderArk)
	}

	temperature := 0.7
	if override, err := parseOptionalFloatEnv("LLM_DEFAULT_TEMPERATURE"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 || *override > 2 {
			return AIConfig{}, fmt.Errorf("invalid LLM_DEFAULT_TEMPERATURE value %v: must be within [0, 2]", *override)
		}
		temperature = *override
	}

	maxTokens := gmi.DefaultMaxTokens
	if override, err := parseOptionalIntEnv("LLM_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		maxTokens = *override
	}

	timeout, err := parseDurationEnv("LLM_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:     provider,
		APIKey:       strings.TrimSpace(os.Getenv("GMI_API_KEY")),
		BaseURL:      getEnvOrDefault("GMI_BASE_URL", gmi.DefaultEndpoint),
		Model:        getEnvOrDefault("GMI_MODEL", gmi.DefaultModel),
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		Timeout:      timeout,
		ArkAPIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkAccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		ArkSecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		ArkModel:     strings.TrimSpace(os.Getenv("ARK_MODEL")),
		ArkBaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}, nil
}

// CatalogConfig 指向可选的发言人/话题目录文件。
type CatalogConfig struct {
	Path string
}

// DebateConfig 控制会话编排行为。
type DebateConfig struct {
	// ContextWindow 限制写入提示词的历史条数，0 表示不限制。
	ContextWindow int

	// AutoTurnLimit 限制连续自动续辩的轮数，0 表示不限制。
	AutoTurnLimit int

	// AllowCustomTopics 允许使用目录之外的话题（例如自动生成的话题）。
	AllowCustomTopics bool
}

func loadDebateConfig() (DebateConfig, error) {
	window, err := parseNonNegativeIntEnv("DEBATE_CONTEXT_WINDOW")
	if err != nil {
		return DebateConfig{}, err
	}

	autoLimit, err := parseNonNegativeIntEnv("DEBATE_AUTO_TURN_LIMIT")
	if err != nil {
		return DebateConfig{}, err
	}

	customTopics, err := parseBoolEnv("DEBATE_ALLOW_CUSTOM_TOPICS", false)
	if err != nil {
		return DebateConfig{}, err
	}

	return DebateConfig{ContextWindow: window, AutoTurnLimit: autoLimit, AllowCustomTopics: customTopics}, nil
}

// LogConfig 描述日志输出格式。
type LogConfig struct {
	Level  log.Level
	Format string
}

func loadLogConfig() (LogConfig, error) {
	level, err := log.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value: %w", err)
	}

	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text"))
	if format != "text" && format != "json" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q", format)
	}

	return LogConfig{Level: level, Format: format}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseNonNegativeIntEnv(key string) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil || val == nil {
		return 0, err
	}
	if *val < 0 {
		return 0, fmt.Errorf("invalid %s value %d: must not be negative", key, *val)
	}
	return *val, nil
}
