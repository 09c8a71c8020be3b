package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	RoleCatalog = "catalog"
	RoleAccount = "account"
	RoleOrder   = "order"

	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverMySQL  = "mysql"
	DriverKafka  = "kafka"
)

var knownRoles = []string{RoleCatalog, RoleAccount, RoleOrder}

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Clients   ClientsConfig   `yaml:"clients"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Messaging MessagingConfig `yaml:"messaging"`
	Stores    StoresConfig    `yaml:"stores"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Log       LogConfig       `yaml:"log"`
	Saga      SagaConfig      `yaml:"saga"`
	Seed      SeedConfig      `yaml:"seed"`
}

type ServiceConfig struct {
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

type HTTPConfig struct {
	OrderAddr       string        `yaml:"order_addr"`
	CatalogAddr     string        `yaml:"catalog_addr"`
	AccountAddr     string        `yaml:"account_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	CatalogAddr string `yaml:"catalog_addr"`
}

type ClientsConfig struct {
	// InProcess calls co-located roles directly instead of over the network
	InProcess     bool          `yaml:"in_process"`
	CatalogTarget string        `yaml:"catalog_target"`
	AccountURL    string        `yaml:"account_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	TopicPrefix  string        `yaml:"topic_prefix"`
	GroupID      string        `yaml:"group_id"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

type MessagingConfig struct {
	Driver      string `yaml:"driver"`
	Buffer      int    `yaml:"buffer"`
	Idempotency string `yaml:"idempotency"`
}

type StoresConfig struct {
	Catalog string `yaml:"catalog"`
	Account string `yaml:"account"`
	Order   string `yaml:"order"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type SagaConfig struct {
	ReleaseOnRejectedUser bool `yaml:"release_on_rejected_user"`
}

type SeedConfig struct {
	Products []SeedProduct `yaml:"products"`
	Accounts []SeedAccount `yaml:"accounts"`
}

type SeedProduct struct {
	Name     string `yaml:"name"`
	Quantity int    `yaml:"quantity"`
	Price    string `yaml:"price"`
}

type SeedAccount struct {
	UserName string   `yaml:"user_name"`
	Products []string `yaml:"products"`
}

// Default runs every role in one process on in-memory stores.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{Name: "order-saga", Roles: slices.Clone(knownRoles)},
		HTTP: HTTPConfig{
			OrderAddr:       ":8080",
			CatalogAddr:     ":8081",
			AccountAddr:     ":8082",
			ShutdownTimeout: 5 * time.Second,
		},
		GRPC: GRPCConfig{CatalogAddr: ":50051"},
		Clients: ClientsConfig{
			CatalogTarget: "localhost:50051",
			AccountURL:    "http://localhost:8082",
			Timeout:       3 * time.Second,
		},
		MySQL: MySQLConfig{
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{Addr: "localhost:6379", PoolSize: 100},
		Kafka: KafkaConfig{
			GroupID:      "order-saga",
			BatchTimeout: 10 * time.Millisecond,
		},
		Messaging: MessagingConfig{Driver: DriverMemory, Buffer: 256, Idempotency: DriverMemory},
		Stores:    StoresConfig{Catalog: DriverMemory, Account: DriverMemory, Order: DriverMemory},
		Tracing:   TracingConfig{Insecure: true, SampleRatio: 1},
		Log:       LogConfig{Level: "info"},
		Saga:      SagaConfig{ReleaseOnRejectedUser: true},
	}
}

// Load layers the YAML file at path (optional), a .env file in the working
// directory (optional) and the process environment over Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.MySQL.DSN, "MYSQL_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Tracing.Endpoint, "OTEL_ENDPOINT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Messaging.Driver, "MESSAGING_DRIVER")
	setString(&c.Messaging.Idempotency, "IDEMPOTENCY_STORE")
	setString(&c.Clients.CatalogTarget, "CATALOG_TARGET")
	setString(&c.Clients.AccountURL, "ACCOUNT_URL")
	setString(&c.Stores.Catalog, "CATALOG_STORE")
	setString(&c.Stores.Account, "ACCOUNT_STORE")
	setString(&c.Stores.Order, "ORDER_STORE")
	setList(&c.Kafka.Brokers, "KAFKA_BROKERS")
	setList(&c.Service.Roles, "ROLES")

	if v, ok := os.LookupEnv("RELEASE_ON_REJECTED_USER"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RELEASE_ON_REJECTED_USER: %w", err)
		}
		c.Saga.ReleaseOnRejectedUser = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (c *Config) HasRole(role string) bool {
	return slices.Contains(c.Service.Roles, role)
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if len(c.Service.Roles) == 0 {
		return errors.New("config: at least one role is required")
	}
	for _, r := range c.Service.Roles {
		if !slices.Contains(knownRoles, r) {
			return fmt.Errorf("config: unknown role %q", r)
		}
	}

	switch c.Messaging.Driver {
	case DriverMemory:
		// in-memory events never leave the process
		for _, r := range knownRoles {
			if !c.HasRole(r) {
				return fmt.Errorf("config: memory messaging needs every role in one process, %q is missing", r)
			}
		}
	case DriverKafka:
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("config: kafka messaging needs kafka.brokers")
		}
	default:
		return fmt.Errorf("config: unknown messaging driver %q", c.Messaging.Driver)
	}

	if err := oneOf("messaging.idempotency", c.Messaging.Idempotency, DriverMemory, DriverRedis); err != nil {
		return err
	}
	if err := oneOf("stores.catalog", c.Stores.Catalog, DriverMemory, DriverRedis, DriverMySQL); err != nil {
		return err
	}
	if err := oneOf("stores.account", c.Stores.Account, DriverMemory, DriverMySQL); err != nil {
		return err
	}
	if err := oneOf("stores.order", c.Stores.Order, DriverMemory, DriverMySQL); err != nil {
		return err
	}

	if c.UsesMySQL() && c.MySQL.DSN == "" {
		return errors.New("config: mysql store selected but mysql.dsn is empty")
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return errors.New("config: redis selected but redis.addr is empty")
	}

	if c.HasRole(RoleOrder) && !c.Clients.InProcess {
		if !c.HasRole(RoleCatalog) && c.Clients.CatalogTarget == "" {
			return errors.New("config: order role needs clients.catalog_target")
		}
		if !c.HasRole(RoleAccount) && c.Clients.AccountURL == "" {
			return errors.New("config: order role needs clients.account_url")
		}
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("config: tracing.sample_ratio %v out of [0,1]", c.Tracing.SampleRatio)
	}
	return nil
}

// UsesMySQL reports whether a local role keeps data in MySQL.
func (c *Config) UsesMySQL() bool {
	return (c.HasRole(RoleCatalog) && c.Stores.Catalog == DriverMySQL) ||
		(c.HasRole(RoleAccount) && c.Stores.Account == DriverMySQL) ||
		(c.HasRole(RoleOrder) && c.Stores.Order == DriverMySQL)
}

func (c *Config) UsesRedis() bool {
	return (c.HasRole(RoleCatalog) && c.Stores.Catalog == DriverRedis) ||
		c.Messaging.Idempotency == DriverRedis
}

func oneOf(field, value string, allowed ...string) error {
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("config: %s must be one of %v, got %q", field, allowed, value)
	}
	return nil
}
