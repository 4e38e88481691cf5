package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	IdentityProviderLocal    = "local"
	IdentityProviderFirebase = "firebase"

	DefaultPromoPlanName     = "Premium"
	DefaultPromoDurationDays = 30
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Identity     IdentityConfig     `mapstructure:"identity"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Firebase     FirebaseConfig     `mapstructure:"firebase"`
	OAuth        OAuthConfig        `mapstructure:"oauth"`
	Email        EmailConfig        `mapstructure:"email"`
	Billing      BillingConfig      `mapstructure:"billing"`
	Admin        AdminConfig        `mapstructure:"admin"`
	Promo        PromoConfig        `mapstructure:"promo"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
	Env    string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // postgres, mysql
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type IdentityConfig struct {
	Provider string `mapstructure:"provider"` // local, firebase
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type FirebaseConfig struct {
	ProjectID             string `mapstructure:"project_id"`
	CredentialsFile       string `mapstructure:"credentials_file"`
	CredentialsJSONBase64 string `mapstructure:"credentials_json_base64"`
}

type OAuthConfig struct {
	Github GithubOAuthConfig `mapstructure:"github"`
}

type GithubOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	ResetURL string `mapstructure:"reset_url"` // 密码重置页面地址，token 作为查询参数追加
}

type BillingConfig struct {
	SecretKey       string `mapstructure:"secret_key"`
	WebhookSecret   string `mapstructure:"webhook_secret"`
	SuccessURL      string `mapstructure:"success_url"`
	CancelURL       string `mapstructure:"cancel_url"`
	PortalReturnURL string `mapstructure:"portal_return_url"`
	DefaultPriceID  string `mapstructure:"default_price_id"`
}

type AdminConfig struct {
	Emails string `mapstructure:"emails"` // 逗号分隔
}

type PromoConfig struct {
	DefaultPlanName     string `mapstructure:"default_plan_name"`
	DefaultDurationDays int    `mapstructure:"default_duration_days"`
}

type RateLimitConfig struct {
	Redeem RateLimitRule `mapstructure:"redeem"`
}

type RateLimitRule struct {
	Requests      int `mapstructure:"requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type SubscriptionConfig struct {
	Levels map[string]SubscriptionLevel `mapstructure:"levels"`
}

type SubscriptionLevel struct {
	DailyQuota int `mapstructure:"daily_quota"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("identity.provider", IdentityProviderLocal)
	v.SetDefault("jwt.expire_hours", 72)
	v.SetDefault("promo.default_plan_name", DefaultPromoPlanName)
	v.SetDefault("promo.default_duration_days", DefaultPromoDurationDays)
	v.SetDefault("rate_limit.redeem.requests", 5)
	v.SetDefault("rate_limit.redeem.window_seconds", 60)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// 这些键只出现在环境变量里时也需要被 Unmarshal 看到
	for _, key := range []string{
		"billing.secret_key", "billing.webhook_secret", "admin.emails",
		"jwt.secret", "firebase.project_id", "firebase.credentials_json_base64",
		"database.password", "redis.password",
	} {
		v.SetDefault(key, "")
	}
}

// Validate 启动时校验必需配置，缺失时拒绝启动
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Database.Host) == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if strings.TrimSpace(c.Database.Database) == "" {
		errs = append(errs, errors.New("database.database is required"))
	}
	switch c.Database.Driver {
	case "", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver %q", c.Database.Driver))
	}

	if strings.TrimSpace(c.Billing.WebhookSecret) == "" {
		errs = append(errs, errors.New("billing.webhook_secret is required"))
	}
	if strings.TrimSpace(c.Billing.SecretKey) == "" {
		errs = append(errs, errors.New("billing.secret_key is required"))
	}
	if len(c.AdminAllowList()) == 0 {
		errs = append(errs, errors.New("admin.emails must list at least one address"))
	}
	if strings.TrimSpace(c.Promo.DefaultPlanName) == "" {
		errs = append(errs, errors.New("promo.default_plan_name is required"))
	}

	switch c.IdentityProvider() {
	case IdentityProviderLocal:
		if strings.TrimSpace(c.JWT.Secret) == "" {
			errs = append(errs, errors.New("jwt.secret is required for the local identity provider"))
		}
	case IdentityProviderFirebase:
		if strings.TrimSpace(c.Firebase.ProjectID) == "" {
			errs = append(errs, errors.New("firebase.project_id is required for the firebase identity provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported identity.provider %q", c.Identity.Provider))
	}

	return errors.Join(errs...)
}

// IdentityProvider 返回归一化后的身份提供方名称
func (c *Config) IdentityProvider() string {
	p := strings.ToLower(strings.TrimSpace(c.Identity.Provider))
	if p == "" {
		return IdentityProviderLocal
	}
	return p
}

// AdminAllowList 解析管理员邮箱白名单，保留配置中的大小写
func (c *Config) AdminAllowList() []string {
	var list []string
	for _, part := range strings.Split(c.Admin.Emails, ",") {
		if email := strings.TrimSpace(part); email != "" {
			list = append(list, email)
		}
	}
	return list
}

// PromoDurationDays 返回默认授予天数
func (c *Config) PromoDurationDays() int {
	if c.Promo.DefaultDurationDays <= 0 {
		return DefaultPromoDurationDays
	}
	return c.Promo.DefaultDurationDays
}

// PromoPlanName 返回兑换码使用的默认套餐名
func (c *Config) PromoPlanName() string {
	if name := strings.TrimSpace(c.Promo.DefaultPlanName); name != "" {
		return name
	}
	return DefaultPromoPlanName
}
