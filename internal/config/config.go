// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// списки слов и таблица замен читаются из JSON (см. terms.go).
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

const maxReputationBound = math.MaxInt32 / 2

// Драйверы хранилища репутации.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Чаты, в которых бот модерирует. Пусто — все группы, куда его добавили.
	AllowedChatIDsRaw string  `envconfig:"ALLOWED_CHAT_IDS"`
	AllowedChatIDs    []int64 `envconfig:"-"`

	// --- Admin (консоль модератора в личке) ---
	AdminIDsRaw       string  `envconfig:"ADMIN_IDS"`
	AdminIDs          []int64 `envconfig:"-"` // заполним вручную
	AdminPasswordHash string  `envconfig:"ADMIN_PASSWORD_HASH"`

	// --- Storage ---
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"guardian.db"`

	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), для локалки DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"guardian_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// Redis для памяти о применённых наказаниях. Пусто — память процесса.
	RedisURL string `envconfig:"REDIS_URL"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Reputation ---
	ReputationStart  int    `envconfig:"REPUTATION_START" default:"100"`
	ReputationMin    int    `envconfig:"REPUTATION_MIN" default:"0"`
	ReputationMax    int    `envconfig:"REPUTATION_MAX" default:"1000"`
	LedgerMaxRetries uint64 `envconfig:"LEDGER_MAX_RETRIES" default:"5"`

	// Ежедневное восстановление репутации за день без нарушений.
	RecoveryPoints int `envconfig:"RECOVERY_POINTS" default:"2"`
	// Потолок восстановления. 0 — стартовая репутация.
	RecoveryCap int `envconfig:"RECOVERY_CAP" default:"0"`

	// --- Penalties ---
	PenaltyMild     int `envconfig:"PENALTY_MILD" default:"10"`
	PenaltyModerate int `envconfig:"PENALTY_MODERATE" default:"15"`
	PenaltySevere   int `envconfig:"PENALTY_SEVERE" default:"25"`

	// --- Thresholds ---
	ThresholdMute int `envconfig:"THRESHOLD_MUTE" default:"30"`
	ThresholdBan  int `envconfig:"THRESHOLD_BAN" default:"0"`
	// Порог кика присутствует в исходных настройках, но не участвует в эскалации.
	ThresholdKick int           `envconfig:"THRESHOLD_KICK" default:"10"`
	MuteDuration  time.Duration `envconfig:"MUTE_DURATION" default:"10m"`

	// --- Lexical ---
	TermsFile          string `envconfig:"MODERATION_TERMS_FILE"`
	ModerationLanguage string `envconfig:"MODERATION_LANGUAGE" default:"und"`
	Terms              *Terms `envconfig:"-"`

	// --- External classifier (Gemini) ---
	ExternalEnabled        bool          `envconfig:"EXTERNAL_ENABLED" default:"false"`
	GeminiAPIKey           string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel            string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	GeminiBaseURL          string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	ExternalTimeout        time.Duration `envconfig:"EXTERNAL_TIMEOUT" default:"5s"`
	ExternalMaxConcurrency int64         `envconfig:"EXTERNAL_MAX_CONCURRENCY" default:"8"`
	ExternalRetries        int           `envconfig:"EXTERNAL_RETRIES" default:"1"`
	ExternalCacheSize      int           `envconfig:"EXTERNAL_CACHE_SIZE" default:"10000"`
	ExternalCacheTTL       time.Duration `envconfig:"EXTERNAL_CACHE_TTL" default:"1h"`

	// --- Assistant (/ask) ---
	AssistantEnabled        bool          `envconfig:"ASSISTANT_ENABLED" default:"false"`
	AssistantTimeout        time.Duration `envconfig:"ASSISTANT_TIMEOUT" default:"30s"`
	AssistantMaxConcurrency int64         `envconfig:"ASSISTANT_MAX_CONCURRENCY" default:"4"`
	AssistantMaxSessions    int           `envconfig:"ASSISTANT_MAX_SESSIONS" default:"1000"`
	AssistantSessionTTL     time.Duration `envconfig:"ASSISTANT_SESSION_TTL" default:"1h"`
	AssistantMaxExchanges   int           `envconfig:"ASSISTANT_MAX_EXCHANGES" default:"10"`

	// --- Rate Limiting (только команды, модерация работает всегда) ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Language возвращает тег языка для приведения к нижнему регистру.
// Validate гарантирует, что тег разбирается.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.ModerationLanguage)
	if err != nil {
		return language.Und
	}
	return tag
}

// EffectiveRecoveryCap возвращает потолок восстановления с учётом дефолта.
func (c *Config) EffectiveRecoveryCap() int {
	if c.RecoveryCap <= 0 {
		return c.ReputationStart
	}
	return c.RecoveryCap
}

// IsAdmin проверяет, входит ли пользователь в ADMIN_IDS.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAllowedChat проверяет, модерирует ли бот этот чат.
func (c *Config) IsAllowedChat(chatID int64) bool {
	if len(c.AllowedChatIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для STORE_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH не задан")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("неизвестный STORE_DRIVER %q", c.StoreDriver)
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	// Счёт и delta хранятся в INTEGER, ширина диапазона тоже должна в него влезать
	if c.ReputationMin < -maxReputationBound || c.ReputationMax > maxReputationBound {
		return fmt.Errorf("REPUTATION_MIN/MAX должны лежать в [%d, %d]", -maxReputationBound, maxReputationBound)
	}
	if c.ReputationMin > c.ReputationMax {
		return fmt.Errorf("REPUTATION_MIN (%d) больше REPUTATION_MAX (%d)", c.ReputationMin, c.ReputationMax)
	}
	if c.ReputationStart < c.ReputationMin || c.ReputationStart > c.ReputationMax {
		return fmt.Errorf("REPUTATION_START (%d) вне диапазона [%d, %d]", c.ReputationStart, c.ReputationMin, c.ReputationMax)
	}
	if c.PenaltyMild < 0 || c.PenaltyModerate < 0 || c.PenaltySevere < 0 {
		return fmt.Errorf("штрафы не могут быть отрицательными")
	}
	if c.ThresholdBan > c.ThresholdMute {
		return fmt.Errorf("THRESHOLD_BAN (%d) больше THRESHOLD_MUTE (%d)", c.ThresholdBan, c.ThresholdMute)
	}
	if c.MuteDuration <= 0 {
		return fmt.Errorf("MUTE_DURATION должен быть > 0")
	}
	if c.RecoveryPoints < 0 {
		return fmt.Errorf("RECOVERY_POINTS не может быть отрицательным")
	}
	if _, err := language.Parse(c.ModerationLanguage); err != nil {
		return fmt.Errorf("MODERATION_LANGUAGE: %w", err)
	}
	if c.ExternalEnabled {
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY обязателен при EXTERNAL_ENABLED=true")
		}
		if c.ExternalTimeout <= 0 {
			return fmt.Errorf("EXTERNAL_TIMEOUT должен быть > 0")
		}
		if c.ExternalMaxConcurrency <= 0 {
			return fmt.Errorf("EXTERNAL_MAX_CONCURRENCY должен быть > 0")
		}
	}
	if c.AssistantEnabled {
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY обязателен при ASSISTANT_ENABLED=true")
		}
		if c.AssistantSessionTTL <= 0 || c.AssistantMaxSessions <= 0 {
			return fmt.Errorf("ASSISTANT_SESSION_TTL и ASSISTANT_MAX_SESSIONS должны быть > 0")
		}
	}
	if c.Terms == nil {
		return fmt.Errorf("списки слов не загружены")
	}
	return c.Terms.Validate()
}

// WarnUnused пишет в лог о настройках, которые принимаются, но ни на что не влияют.
func (c *Config) WarnUnused() {
	log.WithField("threshold_kick", c.ThresholdKick).
		Warn("THRESHOLD_KICK не участвует в эскалации (только мут и бан)")
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	chats, err := parseInt64CSV(cfg.AllowedChatIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ALLOWED_CHAT_IDS parse: %w", err)
	}
	cfg.AllowedChatIDs = chats

	terms, err := LoadTerms(cfg.TermsFile)
	if err != nil {
		return nil, err
	}
	cfg.Terms = terms

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
