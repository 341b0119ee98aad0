package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
)

// LoadConfig 加载配置文件
// configPath: 配置文件路径，如果为空则使用默认路径
// env: 环境标识，支持 development, test, production
func LoadConfig(configPath, env string) (*Config, error) {
	if env == "" {
		env = getEnvFromEnvironment()
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	// 根据环境选择配置文件
	configFile := getConfigFileName(configPath, env)
	v.SetConfigFile(configFile)

	// 设置环境变量前缀
	v.SetEnvPrefix("LINBO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 绑定环境变量
	bindEnvironmentVariables(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyRunnerDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	GlobalConfig = &config

	return &config, nil
}

// getEnvFromEnvironment 从环境变量获取环境标识
func getEnvFromEnvironment() string {
	env := os.Getenv("LINBO_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	if env == "" {
		env = "development"
	}
	return env
}

// getDefaultConfigPath 获取默认配置文件路径
func getDefaultConfigPath() string {
	if configPath := os.Getenv("LINBO_CONFIG_PATH"); configPath != "" {
		return configPath
	}
	return "configs"
}

// getConfigFileName 根据环境获取配置文件名
func getConfigFileName(configPath, env string) string {
	var configFile string

	switch env {
	case "production", "prod":
		configFile = filepath.Join(configPath, "config.prod.yaml")
	case "test", "testing":
		configFile = filepath.Join(configPath, "config.test.yaml")
	default:
		configFile = filepath.Join(configPath, "config.yaml")
	}

	// 环境专用文件不存在时回落到默认配置文件
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		defaultConfig := filepath.Join(configPath, "config.yaml")
		if _, err := os.Stat(defaultConfig); err == nil {
			return defaultConfig
		}
	}

	return configFile
}

// bindEnvironmentVariables 绑定环境变量
func bindEnvironmentVariables(v *viper.Viper) {
	// 数据库配置
	v.BindEnv("database.mysql.host", "LINBO_MYSQL_HOST")
	v.BindEnv("database.mysql.port", "LINBO_MYSQL_PORT")
	v.BindEnv("database.mysql.username", "LINBO_MYSQL_USERNAME")
	v.BindEnv("database.mysql.password", "LINBO_MYSQL_PASSWORD")
	v.BindEnv("database.mysql.database", "LINBO_MYSQL_DATABASE")

	v.BindEnv("database.redis.host", "LINBO_REDIS_HOST")
	v.BindEnv("database.redis.port", "LINBO_REDIS_PORT")
	v.BindEnv("database.redis.password", "LINBO_REDIS_PASSWORD")
	v.BindEnv("database.redis.database", "LINBO_REDIS_DATABASE")

	// JWT配置
	v.BindEnv("security.jwt.secret", "LINBO_JWT_SECRET")
	v.BindEnv("security.jwt.access_token_expire", "LINBO_JWT_ACCESS_TOKEN_EXPIRE")
	v.BindEnv("security.jwt.issuer", "LINBO_JWT_ISSUER")
	v.BindEnv("security.jwt.algorithm", "LINBO_JWT_ALGORITHM")

	// 服务器配置
	v.BindEnv("server.host", "LINBO_SERVER_HOST")
	v.BindEnv("server.port", "LINBO_SERVER_PORT")
	v.BindEnv("server.mode", "LINBO_SERVER_MODE")

	// 运行器配置
	v.BindEnv("runner.ssh.user", "LINBO_SSH_USER")
	v.BindEnv("runner.ssh.private_key_path", "LINBO_SSH_PRIVATE_KEY_PATH")
	v.BindEnv("runner.wol.broadcast_addr", "LINBO_WOL_BROADCAST_ADDR")

	// 应用配置
	v.BindEnv("app.environment", "LINBO_APP_ENVIRONMENT")
	v.BindEnv("app.debug", "LINBO_APP_DEBUG")
}

// applyRunnerDefaults 填充运行器配置缺省值
// 调度参数缺失是常见的部署疏漏，这里统一兜底而不是在调度器里埋默认值
func applyRunnerDefaults(config *Config) {
	if config == nil {
		return
	}

	if config.Runner.PollInterval <= 0 {
		config.Runner.PollInterval = defaultPollInterval
	}
	if config.Runner.MaxConcurrentSessions <= 0 {
		config.Runner.MaxConcurrentSessions = defaultMaxConcurrentSessions
	}
	if config.Runner.BusyRetryTicks <= 0 {
		config.Runner.BusyRetryTicks = defaultBusyRetryTicks
	}
	if config.Runner.ConnectTimeout <= 0 {
		config.Runner.ConnectTimeout = defaultConnectTimeout
	}
	if config.Runner.CommandTimeout <= 0 {
		config.Runner.CommandTimeout = defaultCommandTimeout
	}
	if config.Runner.SessionMaxDuration <= 0 {
		config.Runner.SessionMaxDuration = defaultSessionMaxDuration
	}
	if config.Runner.HeartbeatStaleAfter <= 0 {
		config.Runner.HeartbeatStaleAfter = defaultHeartbeatStaleAfter
	}
	if config.Runner.WOL.DefaultWakeDelay <= 0 {
		config.Runner.WOL.DefaultWakeDelay = defaultWakeDelay
	}
	if config.Runner.SSH.Port <= 0 {
		config.Runner.SSH.Port = defaultSSHPort
	}
	if config.Runner.SSH.User == "" {
		config.Runner.SSH.User = "root"
	}
}

// validateConfig 验证配置
func validateConfig(config *Config) error {
	// 验证服务器配置
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.Mode != "debug" && config.Server.Mode != "release" && config.Server.Mode != "test" {
		return fmt.Errorf("invalid server mode: %s", config.Server.Mode)
	}

	// 验证数据库配置
	if config.Database.MySQL.Host == "" {
		return fmt.Errorf("mysql host is required")
	}

	if config.Database.MySQL.Database == "" {
		return fmt.Errorf("mysql database name is required")
	}

	if config.Database.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}

	// 验证JWT配置
	if config.Security.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}

	if len(config.Security.JWT.Secret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 characters long")
	}

	// 验证日志配置
	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	if !contains(validLogLevels, config.Log.Level) {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Log.Format) {
		return fmt.Errorf("invalid log format: %s", config.Log.Format)
	}

	validLogOutputs := []string{"stdout", "stderr", "file"}
	if !contains(validLogOutputs, config.Log.Output) {
		return fmt.Errorf("invalid log output: %s", config.Log.Output)
	}

	if config.Log.Output == "file" && config.Log.FilePath == "" {
		return fmt.Errorf("log file path is required when output is file")
	}

	// 验证运行器配置
	if config.Runner.SSH.PrivateKeyPath == "" {
		return fmt.Errorf("runner ssh private key path is required")
	}

	if config.Runner.WOL.BroadcastAddr == "" {
		return fmt.Errorf("runner wol broadcast address is required")
	}

	return nil
}

// contains 检查切片是否包含指定元素
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return GlobalConfig
}

// MustLoadConfig 加载配置，如果失败则panic
func MustLoadConfig(configPath, env string) *Config {
	config, err := LoadConfig(configPath, env)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return config
}

// GetEnv 获取当前环境
func GetEnv() string {
	if GlobalConfig != nil {
		return GlobalConfig.App.Environment
	}
	return getEnvFromEnvironment()
}

// IsDevelopment 判断是否为开发环境
func IsDevelopment() bool {
	if GlobalConfig != nil {
		return GlobalConfig.App.IsDevelopment()
	}
	return GetEnv() == "development"
}

// IsProduction 判断是否为生产环境
func IsProduction() bool {
	if GlobalConfig != nil {
		return GlobalConfig.App.IsProduction()
	}
	return GetEnv() == "production"
}
