package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/motongxue/stopAndWaitTransfer/protocol"
)

// 配置项
const (
	KeyPacketSize = "protocol.packetSize"

	KeyClientInitialTimeout = "client.initialTimeout"
	KeyClientMaxTimeout     = "client.maxTimeout"
	KeyClientMaxAttempts    = "client.maxAttempts"
	KeyClientBackoff        = "client.backoff"

	KeyServerPort        = "server.port"
	KeyServerOutputDir   = "server.outputDir"
	KeyServerIdleTimeout = "server.idleTimeout"
	KeyServerHTTPAddr    = "server.httpAddr"

	KeyRedisAddr     = "redis.addr"
	KeyRedisPassword = "redis.password"
	KeyRedisDB       = "redis.db"
	KeyRedisTTL      = "redis.ttl"

	KeyTransportTOS         = "transport.tos"
	KeyTransportDropRate    = "transport.dropRate"
	KeyTransportCorruptRate = "transport.corruptRate"
	KeyTransportSeed        = "transport.seed"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
)

type ClientConfig struct {
	InitialTimeout time.Duration
	MaxTimeout     time.Duration
	// 0 表示无限重试
	MaxAttempts int
	Backoff     float64
}

type ServerConfig struct {
	Port        int
	OutputDir   string
	IdleTimeout time.Duration
	// 为空时不启动状态接口
	HTTPAddr string
}

type RedisConfig struct {
	// 为空时使用内存存储
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type TransportConfig struct {
	TOS         int
	DropRate    float64
	CorruptRate float64
	Seed        int64
}

type LogConfig struct {
	Level  string
	Format string
}

// Config 程序的全部配置
type Config struct {
	PacketSize int
	Client     ClientConfig
	Server     ServerConfig
	Redis      RedisConfig
	Transport  TransportConfig
	Log        LogConfig
}

// SetDefaults 设置默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPacketSize, protocol.DefaultPacketSize)

	v.SetDefault(KeyClientInitialTimeout, 200*time.Millisecond)
	v.SetDefault(KeyClientMaxTimeout, 5*time.Second)
	v.SetDefault(KeyClientMaxAttempts, 0)
	v.SetDefault(KeyClientBackoff, 2.0)

	v.SetDefault(KeyServerPort, 9000)
	v.SetDefault(KeyServerOutputDir, "test_out")
	v.SetDefault(KeyServerIdleTimeout, 30*time.Second)
	v.SetDefault(KeyServerHTTPAddr, "")

	v.SetDefault(KeyRedisAddr, "")
	v.SetDefault(KeyRedisDB, 0)
	v.SetDefault(KeyRedisTTL, 24*time.Hour)

	v.SetDefault(KeyTransportTOS, 0)
	v.SetDefault(KeyTransportDropRate, 0.0)
	v.SetDefault(KeyTransportCorruptRate, 0.0)
	v.SetDefault(KeyTransportSeed, 1)

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// LoadConfig 读取配置文件（可选）和 RDT_ 前缀的环境变量
func LoadConfig(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("rdt")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	packetSize, err := GetConfInt(v, KeyPacketSize)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		PacketSize: packetSize,
		Client: ClientConfig{
			InitialTimeout: v.GetDuration(KeyClientInitialTimeout),
			MaxTimeout:     v.GetDuration(KeyClientMaxTimeout),
			MaxAttempts:    v.GetInt(KeyClientMaxAttempts),
			Backoff:        v.GetFloat64(KeyClientBackoff),
		},
		Server: ServerConfig{
			Port:        v.GetInt(KeyServerPort),
			OutputDir:   v.GetString(KeyServerOutputDir),
			IdleTimeout: v.GetDuration(KeyServerIdleTimeout),
			HTTPAddr:    v.GetString(KeyServerHTTPAddr),
		},
		Redis: RedisConfig{
			Addr:     v.GetString(KeyRedisAddr),
			Password: v.GetString(KeyRedisPassword),
			DB:       v.GetInt(KeyRedisDB),
			TTL:      v.GetDuration(KeyRedisTTL),
		},
		Transport: TransportConfig{
			TOS:         v.GetInt(KeyTransportTOS),
			DropRate:    v.GetFloat64(KeyTransportDropRate),
			CorruptRate: v.GetFloat64(KeyTransportCorruptRate),
			Seed:        v.GetInt64(KeyTransportSeed),
		},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}
	return cfg, cfg.Validate()
}

// Validate 检查配置是否合法
func (c *Config) Validate() error {
	var errs []error
	if c.PacketSize <= protocol.HeaderSize {
		errs = append(errs, fmt.Errorf("%s must be greater than %d", KeyPacketSize, protocol.HeaderSize))
	}
	if c.Client.InitialTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyClientInitialTimeout))
	}
	if c.Client.MaxTimeout < c.Client.InitialTimeout {
		errs = append(errs, fmt.Errorf("%s must not be less than %s", KeyClientMaxTimeout, KeyClientInitialTimeout))
	}
	if c.Client.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyClientMaxAttempts))
	}
	if c.Client.Backoff < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyClientBackoff))
	}
	if c.Transport.DropRate < 0 || c.Transport.DropRate >= 1 {
		errs = append(errs, fmt.Errorf("%s must be in [0, 1)", KeyTransportDropRate))
	}
	if c.Transport.CorruptRate < 0 || c.Transport.CorruptRate >= 1 {
		errs = append(errs, fmt.Errorf("%s must be in [0, 1)", KeyTransportCorruptRate))
	}
	return errors.Join(errs...)
}

// GetConfInt 从配置文件中读取整数，支持 "1 << n" 形式
func GetConfInt(config *viper.Viper, configStr string) (int, error) {
	raw := strings.TrimSpace(config.GetString(configStr))
	atoi, err := strconv.Atoi(raw)
	if err == nil {
		return atoi, nil
	}
	// 不是整数，则考虑是否为位运算表达式
	atoi, err = parseBitwiseExpression(raw)
	if err != nil {
		return 0, fmt.Errorf("error reading %s: %w", configStr, err)
	}
	return atoi, nil
}

// parseBitwiseExpression 解析 "a << b" 表达式
func parseBitwiseExpression(expression string) (int, error) {
	left, right, ok := strings.Cut(expression, "<<")
	if !ok {
		return 0, fmt.Errorf("invalid expression %q", expression)
	}
	base, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return 0, err
	}
	shiftCount, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return 0, err
	}
	if shiftCount < 0 || shiftCount > 30 {
		return 0, fmt.Errorf("shift count %d out of range", shiftCount)
	}
	return base << shiftCount, nil
}
