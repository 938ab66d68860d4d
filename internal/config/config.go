// Package config 讀取 YAML 設定並補上預設值
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-treasury-mediator/pkg/mysql"
)

// EnvPath 指定設定檔路徑的環境變數
const EnvPath = "MEDIATOR_CONFIG"

// DefaultPath 預設設定檔路徑
const DefaultPath = "config/config.yaml"

const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
)

type Config struct {
	Mediator      MediatorConfig      `yaml:"mediator"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	LedgerService LedgerServiceConfig `yaml:"ledger_service"`
	MySQL         mysql.Config        `yaml:"mysql"`
	Redis         RedisConfig         `yaml:"redis"`
	Log           LogConfig           `yaml:"log"`
	Tracing       TracingConfig       `yaml:"tracing"`
}

type MediatorConfig struct {
	// PrivilegedIdentities 系統商店使用的身分，交易不需要帳本異動
	PrivilegedIdentities []string `yaml:"privileged_identities"`
	// ServerAccount 加減款的對手方，空字串代表不設定
	ServerAccount    string `yaml:"server_account"`
	KeyNamespace     string `yaml:"key_namespace"`
	Memo             string `yaml:"memo"`
	Source           string `yaml:"source"`
	StripPriceColors bool   `yaml:"strip_price_colors"`
}

// LedgerConfig mediator 連線遠端帳本的設定
type LedgerConfig struct {
	Target  string        `yaml:"target"`
	Timeout time.Duration `yaml:"timeout"`
	// Keepalive 連線閒置多久送一次 ping，0 使用連線池預設值
	Keepalive time.Duration `yaml:"keepalive"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

// LedgerServiceConfig 參考帳本服務 (cmd/ledger) 的設定
type LedgerServiceConfig struct {
	Listen         string `yaml:"listen"`
	Backend        string `yaml:"backend"`
	WALPath        string `yaml:"wal_path"`
	CurrencySymbol string `yaml:"currency_symbol"`
}

// RedisConfig 離線名稱目錄，Addr 為空時不啟用
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	NamesKey string `yaml:"names_key"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// TracingConfig mediator 的 OpenTelemetry 設定，啟用時 span 寫進 zap log
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// SampleRate 取樣比例 0~1，預設 1
	SampleRate float64 `yaml:"sample_rate"`
}

// Path 回傳 MEDIATOR_CONFIG，未設定時為 DefaultPath
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load 讀取設定檔、補預設值並檢查
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析 YAML 內容
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mediator.KeyNamespace == "" {
		c.Mediator.KeyNamespace = "chestshop"
	}
	if c.Mediator.Memo == "" {
		c.Mediator.Memo = "ChestShop transaction"
	}
	if c.Mediator.Source == "" {
		c.Mediator.Source = "ChestShop"
	}

	if c.Ledger.Target == "" {
		c.Ledger.Target = "localhost:50051"
	}
	if c.Ledger.Timeout == 0 {
		c.Ledger.Timeout = 5 * time.Second
	}
	if c.Ledger.Breaker.ConsecutiveFailures == 0 {
		c.Ledger.Breaker.ConsecutiveFailures = 5
	}
	if c.Ledger.Breaker.Timeout == 0 {
		c.Ledger.Breaker.Timeout = 30 * time.Second
	}

	if c.LedgerService.Listen == "" {
		c.LedgerService.Listen = ":50051"
	}
	if c.LedgerService.Backend == "" {
		c.LedgerService.Backend = BackendMemory
	}
	if c.LedgerService.WALPath == "" {
		c.LedgerService.WALPath = "wal.log"
	}
	if c.LedgerService.CurrencySymbol == "" {
		c.LedgerService.CurrencySymbol = "$"
	}

	// MySQL 連線池預設值
	if c.MySQL.Port == 0 {
		c.MySQL.Port = 3306
	}
	if c.MySQL.MaxOpenConns == 0 {
		c.MySQL.MaxOpenConns = 100
	}
	if c.MySQL.MaxIdleConns == 0 {
		c.MySQL.MaxIdleConns = 10
	}
	if c.MySQL.ConnMaxLifetime == 0 {
		c.MySQL.ConnMaxLifetime = 30 * time.Minute
	}

	if c.Redis.NamesKey == "" {
		c.Redis.NamesKey = "mediator:names"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1
	}
}

// Validate 檢查 UUID 欄位與 backend
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.PrivilegedIdentities(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ServerAccount(); err != nil {
		errs = append(errs, err)
	}
	switch c.LedgerService.Backend {
	case BackendMemory, BackendMySQL:
	default:
		errs = append(errs, fmt.Errorf("ledger_service.backend: unknown backend %q", c.LedgerService.Backend))
	}
	if c.Ledger.Timeout < 0 {
		errs = append(errs, fmt.Errorf("ledger.timeout: must not be negative"))
	}
	if c.Ledger.Keepalive < 0 {
		errs = append(errs, fmt.Errorf("ledger.keepalive: must not be negative"))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate: must be between 0 and 1"))
	}
	return errors.Join(errs...)
}

// PrivilegedIdentities 解析 mediator.privileged_identities
func (c *Config) PrivilegedIdentities() ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(c.Mediator.PrivilegedIdentities))
	for i, raw := range c.Mediator.PrivilegedIdentities {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("mediator.privileged_identities[%d]: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ServerAccount 解析 mediator.server_account
func (c *Config) ServerAccount() (uuid.NullUUID, error) {
	if c.Mediator.ServerAccount == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(c.Mediator.ServerAccount)
	if err != nil {
		return uuid.NullUUID{}, fmt.Errorf("mediator.server_account: %w", err)
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}
