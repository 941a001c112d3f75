package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ThresholdEnvPrefix prefixa variáveis que sobrescrevem thresholds, ex.:
// DIAGNOSTIC_THRESHOLD_WINDOW_DAYS=21
const ThresholdEnvPrefix = "DIAGNOSTIC_THRESHOLD_"

type Config struct {
	App            App            `mapstructure:",squash"`
	Server         Server         `mapstructure:",squash"`
	Database       Database       `mapstructure:",squash"`
	Diagnostic     Diagnostic     `mapstructure:",squash"`
	DiagnosticSync DiagnosticSync `mapstructure:",squash"`
	Meta           Meta           `mapstructure:",squash"`
	SnapshotSync   SnapshotSync   `mapstructure:",squash"`
	SecretKey      string         `mapstructure:"secret_key"`
}

type Server struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

type Database struct {
	DSN          string `mapstructure:"-"`
	Driver       string `mapstructure:"database_driver"`
	Password     string `mapstructure:"database_password"`
	URL          string `mapstructure:"database_url"`
	User         string `mapstructure:"database_user"`
	MaxOpenConns int    `mapstructure:"database_max_open_conns"`
	MaxIdleConns int    `mapstructure:"database_max_idle_conns"`
	// ConnMaxLifetimeMinutes limita a vida de uma conexão no pool
	ConnMaxLifetimeMinutes int `mapstructure:"database_conn_max_lifetime_minutes"`
}

type App struct {
	LogLevel string `mapstructure:"log_level"`
}

type Diagnostic struct {
	Workers        int                `mapstructure:"diagnostic_workers"`
	ThresholdsFile string             `mapstructure:"diagnostic_thresholds_file"`
	Thresholds     map[string]float64 `mapstructure:"-"`
}

type DiagnosticSync struct {
	CronSchedule      string `mapstructure:"diagnostic_sync_cron"`
	LookbackDays      int    `mapstructure:"diagnostic_sync_lookback_days"`
	MaxConcurrentJobs int    `mapstructure:"diagnostic_sync_max_concurrent_jobs"`
	Enabled           bool   `mapstructure:"diagnostic_sync_enabled"`
}

type Meta struct {
	BaseURL        string   `mapstructure:"meta_base_url"`
	URL            string   `mapstructure:"meta_url"`
	Version        string   `mapstructure:"meta_version"`
	AccessToken    string   `mapstructure:"meta_access_token"`
	AppID          string   `mapstructure:"meta_app_id"`
	AppSecret      string   `mapstructure:"meta_app_secret"`
	AdAccountIDs   []string `mapstructure:"meta_ad_account_ids"`
	TimeoutSeconds int      `mapstructure:"meta_timeout_seconds"`
}

type SnapshotSync struct {
	CronSchedule        string `mapstructure:"snapshot_sync_cron"`
	LookbackDays        int    `mapstructure:"snapshot_sync_lookback_days"`
	RequestDelaySeconds int    `mapstructure:"snapshot_sync_request_delay_seconds"`
	MaxConcurrentJobs   int    `mapstructure:"snapshot_sync_max_concurrent_jobs"`
	Enabled             bool   `mapstructure:"snapshot_sync_enabled"`
}

func SetDefaults() {
	viper.SetDefault("HOST", "localhost")
	viper.SetDefault("PORT", 8000)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:4001")

	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("DATABASE_URL", "localhost:5432/traffic?sslmode=disable")
	viper.SetDefault("DATABASE_USER", "postgres")
	viper.SetDefault("DATABASE_PASSWORD", "root")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME_MINUTES", 30)

	viper.SetDefault("SECRET_KEY", "your_secret_key")

	viper.SetDefault("DIAGNOSTIC_WORKERS", 4)          // Workers do motor por execução
	viper.SetDefault("DIAGNOSTIC_THRESHOLDS_FILE", "") // Arquivo YAML opcional com thresholds

	// Defaults para o diagnóstico diário
	viper.SetDefault("DIAGNOSTIC_SYNC_CRON", "0 1 * * *")      // Todos os dias à 1h da manhã
	viper.SetDefault("DIAGNOSTIC_SYNC_LOOKBACK_DAYS", 7)       // 7 dias diagnosticados por execução
	viper.SetDefault("DIAGNOSTIC_SYNC_MAX_CONCURRENT_JOBS", 3) // 3 contas em paralelo
	viper.SetDefault("DIAGNOSTIC_SYNC_ENABLED", false)         // Habilitar diagnóstico diário

	viper.SetDefault("META_BASE_URL", "https://graph.facebook.com")
	viper.SetDefault("META_VERSION", "v22.0")
	viper.SetDefault("META_APP_ID", "")
	viper.SetDefault("META_APP_SECRET", "")
	viper.SetDefault("META_ACCESS_TOKEN", "")
	viper.SetDefault("META_AD_ACCOUNT_IDS", "")
	viper.SetDefault("META_TIMEOUT_SECONDS", 30)

	// Defaults para a coleta diária de snapshots na Meta
	viper.SetDefault("SNAPSHOT_SYNC_CRON", "0 0 * * *")        // Todos os dias à meia-noite, antes do diagnóstico
	viper.SetDefault("SNAPSHOT_SYNC_LOOKBACK_DAYS", 3)         // Recoleta 3 dias para absorver correções
	viper.SetDefault("SNAPSHOT_SYNC_REQUEST_DELAY_SECONDS", 2) // 2 segundos entre contas
	viper.SetDefault("SNAPSHOT_SYNC_MAX_CONCURRENT_JOBS", 2)   // 2 contas em paralelo
	viper.SetDefault("SNAPSHOT_SYNC_ENABLED", false)           // Habilitar coleta diária

	viper.SetDefault("LOG_LEVEL", "debug")
}

func NewConfig() (*Config, error) {
	// Primeiro carregar o arquivo .env usando godotenv
	loadEnvFile() // ONLY LOCAL

	config := &Config{}

	// Configurar valores padrão
	SetDefaults()

	// Configurar o Viper
	viper.SetConfigType("env")
	viper.SetConfigFile(".env")
	viper.AutomaticEnv() // Isso permite que o Viper leia variáveis de ambiente

	// Tentar ler o arquivo .env com o Viper (opcional, já que usamos godotenv)
	if err := viper.ReadInConfig(); err != nil {
		logrus.Info("Usando variáveis carregadas pelo godotenv (viper não conseguiu ler .env):", err)
	} else {
		logrus.Info("Arquivo .env lido pelo Viper com sucesso")
	}

	err := viper.Unmarshal(config, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, err
	}

	config.Diagnostic.Thresholds, err = LoadThresholdOverrides(config.Diagnostic.ThresholdsFile, os.Environ())
	if err != nil {
		return nil, err
	}

	config.Meta.URL = fmt.Sprintf("%s/%s", config.Meta.BaseURL, config.Meta.Version)
	config.Meta.AdAccountIDs = compact(config.Meta.AdAccountIDs)

	config.Database.DSN = fmt.Sprintf(
		"%s://%s:%s@%s",
		config.Database.Driver,
		config.Database.User,
		config.Database.Password,
		config.Database.URL,
	)

	return config, nil
}

// LoadThresholdOverrides lê o arquivo YAML plano (nome: valor), se informado,
// e aplica por cima as variáveis DIAGNOSTIC_THRESHOLD_*. A validação dos nomes
// e valores fica a cargo do motor de diagnóstico.
func LoadThresholdOverrides(path string, environ []string) (map[string]float64, error) {
	overrides := make(map[string]float64)

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("erro ao ler arquivo de thresholds %s: %w", path, err)
		}
		if err := yaml.Unmarshal(content, &overrides); err != nil {
			return nil, fmt.Errorf("erro ao interpretar arquivo de thresholds %s: %w", path, err)
		}
		logrus.WithFields(logrus.Fields{
			"path":       path,
			"thresholds": len(overrides),
		}).Info("Arquivo de thresholds carregado")
	}

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, ThresholdEnvPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, ThresholdEnvPrefix))
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("valor inválido para %s: %w", key, err)
		}
		overrides[name] = v
	}

	return overrides, nil
}

// compact remove espaços e itens vazios de listas separadas por vírgula
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Função auxiliar para carregar o arquivo .env usando godotenv
func loadEnvFile() {
	// Obter diretório atual
	cwd, err := os.Getwd()
	if err != nil {
		logrus.Warn("Não foi possível obter o diretório atual:", err)
		return
	}

	// Tentar várias localizações possíveis para o arquivo .env
	locations := []string{
		filepath.Join(cwd, ".env"),               // Diretório atual
		filepath.Join(filepath.Dir(cwd), ".env"), // Diretório pai
		filepath.Join(cwd, "../../.env"),         // Dois diretórios acima
	}

	for _, location := range locations {
		logrus.Debug("Tentando carregar .env de:", location)
		err := godotenv.Load(location)
		if err == nil {
			logrus.Info("Arquivo .env carregado com sucesso de:", location)
			return
		}
	}

	logrus.Warn("Não foi possível carregar o arquivo .env de nenhuma localização conhecida")
}
