package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Константы для ключей конфигурации
const (
	envKey                = "service_params.env"
	tabTTLMinsKey         = "service_params.tab_ttl_mins"
	apiBaseURLKey         = "api_params.base_url"
	requestTimeoutSecsKey = "api_params.request_timeout_secs"
	refreshTimeoutSecsKey = "api_params.refresh_timeout_secs"
	dedupeRefreshKey      = "api_params.dedupe_refresh"
	storeDriverKey        = "store_params.driver"
	redisURLKey           = "redis_params.url"
	redisPasswordKey      = "redis_params.password"
	shellAddressKey       = "server_params.shell_address"
	healthAddressKey      = "server_params.health_address"
	grpcAddressKey        = "server_params.grpc_address"
	loginPathKey          = "routes_params.login_path"
	userDefaultPathKey    = "routes_params.user_default_path"
	adminDefaultPathKey   = "routes_params.admin_default_path"
)

// AppConfig представляет конфигурацию всего приложения
type AppConfig struct {
	Service ServiceParams `mapstructure:"service_params" validate:"required"`
	API     APIParams     `mapstructure:"api_params" validate:"required"`
	Store   StoreParams   `mapstructure:"store_params" validate:"required"`
	Redis   RedisParams   `mapstructure:"redis_params"`
	Server  ServerParams  `mapstructure:"server_params" validate:"required"`
	Routes  RoutesParams  `mapstructure:"routes_params" validate:"required"`
}

// ServiceParams содержит общие параметры приложения
type ServiceParams struct {
	Env        string `mapstructure:"env" validate:"required,oneof=dev prod test"`
	TabTTLMins int    `mapstructure:"tab_ttl_mins" validate:"required,min=1,max=1440"`
}

// APIParams описывает удаленный API
type APIParams struct {
	BaseURL            string `mapstructure:"base_url" validate:"required,url"`
	RequestTimeoutSecs int    `mapstructure:"request_timeout_secs" validate:"required,min=1,max=300"`
	RefreshTimeoutSecs int    `mapstructure:"refresh_timeout_secs" validate:"required,min=1,max=60"`
	DedupeRefresh      bool   `mapstructure:"dedupe_refresh"`
}

// StoreParams выбирает хранилище токена: memory живет с процессом, redis переживает перезапуск CLI
type StoreParams struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory redis"`
}

type RedisParams struct {
	URL      string `mapstructure:"url" validate:"required_if=Driver redis"`
	Password string `mapstructure:"password"`
	// Driver копируется сюда в Load для проверки required_if
	Driver string `mapstructure:"-"`
}

type ServerParams struct {
	ShellAddress  string `mapstructure:"shell_address" validate:"required"`
	HealthAddress string `mapstructure:"health_address" validate:"required"`
	GRPCAddress   string `mapstructure:"grpc_address" validate:"required"`
}

type RoutesParams struct {
	LoginPath        string `mapstructure:"login_path" validate:"required,startswith=/"`
	UserDefaultPath  string `mapstructure:"user_default_path" validate:"required,startswith=/"`
	AdminDefaultPath string `mapstructure:"admin_default_path" validate:"required,startswith=/"`
}

// RedisURL формирует полный URL для подключения к Redis
func (r *RedisParams) RedisURL() string {
	if r.Password != "" {
		// Если URL уже содержит схему, добавляем пароль
		if len(r.URL) > 8 && r.URL[:8] == "redis://" {
			return fmt.Sprintf("redis://:%s@%s", r.Password, r.URL[8:])
		}
		return fmt.Sprintf("redis://:%s@%s", r.Password, r.URL)
	}

	// Если URL уже содержит схему, возвращаем как есть
	if len(r.URL) > 6 && r.URL[:6] == "redis:" {
		return r.URL
	}

	return fmt.Sprintf("redis://%s", r.URL)
}

// GetTabTTL возвращает время жизни вкладки в виде Duration
func (s *ServiceParams) GetTabTTL() time.Duration {
	return time.Minute * time.Duration(s.TabTTLMins)
}

// GetRequestTimeout возвращает общий таймаут запроса к API
func (a *APIParams) GetRequestTimeout() time.Duration {
	return time.Second * time.Duration(a.RequestTimeoutSecs)
}

// GetRefreshTimeout возвращает таймаут обмена refresh-токена
func (a *APIParams) GetRefreshTimeout() time.Duration {
	return time.Second * time.Duration(a.RefreshTimeoutSecs)
}

// envBindings возвращает мапу ключей конфигурации и соответствующих им переменных окружения
func envBindings() map[string]string {
	return map[string]string{
		envKey:                "SERVICE_ENV",
		tabTTLMinsKey:         "TAB_TTL_MINS",
		apiBaseURLKey:         "API_BASE_URL",
		requestTimeoutSecsKey: "API_REQUEST_TIMEOUT_SECS",
		refreshTimeoutSecsKey: "API_REFRESH_TIMEOUT_SECS",
		dedupeRefreshKey:      "API_DEDUPE_REFRESH",
		storeDriverKey:        "STORE_DRIVER",
		redisURLKey:           "REDIS_URL",
		redisPasswordKey:      "REDIS_PASSWORD",
		shellAddressKey:       "SHELL_ADDRESS",
		healthAddressKey:      "HEALTH_ADDRESS",
		grpcAddressKey:        "GRPC_ADDRESS",
		loginPathKey:          "ROUTE_LOGIN_PATH",
		userDefaultPathKey:    "ROUTE_USER_DEFAULT_PATH",
		adminDefaultPathKey:   "ROUTE_ADMIN_DEFAULT_PATH",
	}
}

// setDefaults значения, которых достаточно для локального запуска
func setDefaults(v *viper.Viper) {
	v.SetDefault(envKey, "dev")
	v.SetDefault(tabTTLMinsKey, 480)
	v.SetDefault(requestTimeoutSecsKey, 30)
	v.SetDefault(refreshTimeoutSecsKey, 10)
	v.SetDefault(dedupeRefreshKey, true)
	v.SetDefault(storeDriverKey, "memory")
	v.SetDefault(shellAddressKey, "127.0.0.1:8090")
	v.SetDefault(healthAddressKey, ":8082")
	v.SetDefault(grpcAddressKey, ":9090")
	v.SetDefault(loginPathKey, "/login")
	v.SetDefault(userDefaultPathKey, "/dashboard")
	v.SetDefault(adminDefaultPathKey, "/admin/dashboard")
}

// New загружает конфигурацию из internal/config рабочей директории и переменных окружения
func New() (*AppConfig, error) {
	// Получаем рабочую директорию
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить рабочую директорию: %w", err)
	}

	return Load(filepath.Join(cwd, "internal", "config"))
}

// Load загружает конфигурацию из каталога dir. Файл config.yaml необязателен,
// если все обязательные значения пришли из окружения
func Load(dir string) (*AppConfig, error) {
	v := viper.New()

	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	// Привязка переменных окружения
	for configKey, envVar := range envBindings() {
		if err := v.BindEnv(configKey, envVar); err != nil {
			return nil, fmt.Errorf("ошибка привязки переменной окружения %s: %w", envVar, err)
		}
	}

	// Чтение конфигурации
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения конфигурационного файла: %w", err)
		}
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("ошибка при декодировании конфигурации: %w", err)
	}
	config.Redis.Driver = config.Store.Driver

	// Валидация конфигурации
	validate := validator.New()

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}

	return &config, nil
}
