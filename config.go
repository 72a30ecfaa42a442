package gotham

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// Config 应用配置，可以从 YAML 或 TOML 文件加载。
type Config struct {
	Debug     bool            `yaml:"debug" toml:"debug"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	RequestID RequestIDConfig `yaml:"request_id" toml:"request_id"`
	// Indent json/xml 响应的格式化缩进，为空时不格式化
	Indent string `yaml:"indent" toml:"indent"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别：debug、info、warn、error
	Level string `yaml:"level" toml:"level"`
	// Format 日志格式：text、json、console
	Format string `yaml:"format" toml:"format"`
	// AddSource 是否记录调用位置
	AddSource bool `yaml:"add_source" toml:"add_source"`
	// File 日志文件，为空时输出到 stderr
	File string `yaml:"file" toml:"file"`
	// MaxSize 单个日志文件的最大尺寸，单位 MB
	MaxSize int `yaml:"max_size" toml:"max_size"`
	// MaxBackups 保留的旧日志文件数量
	MaxBackups int `yaml:"max_backups" toml:"max_backups"`
	// MaxAge 旧日志文件保留的天数
	MaxAge int `yaml:"max_age" toml:"max_age"`
	// Compress 是否使用 gzip 压缩旧日志文件
	Compress bool `yaml:"compress" toml:"compress"`
}

// RequestIDConfig 请求标识配置
type RequestIDConfig struct {
	Header    string `yaml:"header" toml:"header"`
	Generator string `yaml:"generator" toml:"generator"`
}

// LoadConfig 根据扩展名加载 YAML（.yaml/.yml）或 TOML（.toml）配置文件
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data, filepath.Ext(path))
}

// ParseConfig 解析配置，format 为文件扩展名
func ParseConfig(data []byte, format string) (*Config, error) {
	var c Config
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("gotham: parse yaml config: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("gotham: parse toml config: %w", err)
		}
	default:
		return nil, fmt.Errorf("gotham: unsupported config format %q", format)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json", "console":
	default:
		return fmt.Errorf("gotham: unknown log format %q", c.Log.Format)
	}
	if _, ok := RequestIDGeneratorByName(c.RequestID.Generator); !ok {
		return fmt.Errorf("gotham: unknown request id generator %q", c.RequestID.Generator)
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	if c.Debug && c.Log.Level == "" {
		return slog.LevelDebug, nil
	}
	var l slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return l, fmt.Errorf("gotham: invalid log level: %w", err)
	}
	return l, nil
}

// LogOutput 返回日志输出，配置了 File 时使用按尺寸滚动的日志文件
func (c *Config) LogOutput() io.Writer {
	if c.Log.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   c.Log.File,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}
}

// NewLogger 按配置创建日志记录器
func (c *Config) NewLogger() *Logger {
	level, _ := c.level()
	opts := &LoggerOptions{
		Output:    c.LogOutput(),
		AddSource: c.Log.AddSource,
		Level:     level,
	}
	switch c.Log.Format {
	case "json":
		opts.NewHandler = JSONHandler
	case "console":
		opts.NewHandler = ConsoleHandler
	default:
		opts.NewHandler = TextHandler
	}
	return NewLogger(opts)
}

// RouterConfig 返回路由器配置，管道和终结器需要另外设置
func (c *Config) RouterConfig() RouterConfig {
	gen, _ := RequestIDGeneratorByName(c.RequestID.Generator)
	return RouterConfig{
		Logger:             c.NewLogger(),
		RequestIDHeader:    c.RequestID.Header,
		RequestIDGenerator: gen,
		PrettyIndent:       c.Indent,
	}
}
