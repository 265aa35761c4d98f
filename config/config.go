package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polysniper/internal/domain"
)

// Config es la configuración completa del sniper.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	API        APIConfig        `yaml:"api"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Strategies []StrategyConfig `yaml:"strategies"`
}

// EngineConfig controla el loop del engine y el reconciler.
type EngineConfig struct {
	TickSeconds            int `yaml:"tick_seconds"`
	ResolutionDelaySeconds int `yaml:"resolution_delay_seconds"` // espera antes de consultar el resolver
	ReferenceGraceSeconds  int `yaml:"reference_grace_seconds"`  // gracia antes del reference feed
	MaxWaitSeconds         int `yaml:"max_wait_seconds"`         // deadline de resolución forzada
}

// APIConfig contiene los base URLs y credenciales de las APIs.
type APIConfig struct {
	CLOBBase    string `yaml:"clob_base"`
	GammaBase   string `yaml:"gamma_base"`
	BinanceBase string `yaml:"binance_base"`
	DataBase    string `yaml:"data_base"` // Data API (cinta pública de trades)
	// PrivateKey se carga SOLO desde el entorno (POLY_PRIVATE_KEY), nunca
	// desde el YAML.
	PrivateKey string `yaml:"-"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// StrategyConfig es el bloque YAML de una estrategia.
type StrategyConfig struct {
	Tag    string `yaml:"tag"`
	Signal string `yaml:"signal"` // momentum | leader

	Series          string `yaml:"series"`           // p.ej. "btc-updown-15m"
	IntervalMinutes int    `yaml:"interval_minutes"` // duración del periodo
	Symbol          string `yaml:"symbol"`           // subyacente en Binance, p.ej. "BTCUSDT"

	NotionalPerTrade  float64 `yaml:"notional_per_trade"`
	EntryPriceCeiling float64 `yaml:"entry_price_ceiling"`
	EntryWindowMins   int     `yaml:"entry_window_minutes"`
	EntryTimeoutSecs  int     `yaml:"entry_timeout_seconds"`

	StopDistance     float64 `yaml:"stop_distance"`
	TargetDistance   float64 `yaml:"target_distance"`
	HoldToResolution bool    `yaml:"hold_to_resolution"`

	CloseSafetySecs  int `yaml:"close_safety_seconds"`
	ExitDeadlineSecs int `yaml:"exit_deadline_seconds"`

	MinShares int     `yaml:"min_shares"`
	TickSize  float64 `yaml:"tick_size"`

	MinMove     float64 `yaml:"min_move"`      // momentum
	MinLeadProb float64 `yaml:"min_lead_prob"` // leader
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// TickInterval devuelve el intervalo del loop como time.Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickSeconds) * time.Second
}

// Domain convierte un bloque YAML a la config inmutable del dominio.
func (s StrategyConfig) Domain() domain.StrategyConfig {
	return domain.StrategyConfig{
		Tag:               s.Tag,
		Signal:            s.Signal,
		Interval:          time.Duration(s.IntervalMinutes) * time.Minute,
		Series:            s.Series,
		Symbol:            s.Symbol,
		NotionalPerTrade:  decimal.NewFromFloat(s.NotionalPerTrade),
		EntryPriceCeiling: decimal.NewFromFloat(s.EntryPriceCeiling),
		EntryWindow:       time.Duration(s.EntryWindowMins) * time.Minute,
		EntryTimeout:      time.Duration(s.EntryTimeoutSecs) * time.Second,
		StopDistance:      decimal.NewFromFloat(s.StopDistance),
		TargetDistance:    decimal.NewFromFloat(s.TargetDistance),
		HoldToResolution:  s.HoldToResolution,
		CloseSafetyMargin: time.Duration(s.CloseSafetySecs) * time.Second,
		ExitDeadline:      time.Duration(s.ExitDeadlineSecs) * time.Second,
		MinShares:         int64(s.MinShares),
		TickSize:          decimal.NewFromFloat(s.TickSize),
		MinMove:           decimal.NewFromFloat(s.MinMove),
		MinLeadProb:       decimal.NewFromFloat(s.MinLeadProb),
	}
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SNIPER_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	cfg.API.PrivateKey = os.Getenv("POLY_PRIVATE_KEY")
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.TickSeconds <= 0 {
		cfg.Engine.TickSeconds = 3
	}
	if cfg.Engine.ResolutionDelaySeconds <= 0 {
		cfg.Engine.ResolutionDelaySeconds = 15
	}
	if cfg.Engine.ReferenceGraceSeconds <= 0 {
		cfg.Engine.ReferenceGraceSeconds = 120
	}
	if cfg.Engine.MaxWaitSeconds <= 0 {
		cfg.Engine.MaxWaitSeconds = 600
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.BinanceBase == "" {
		cfg.API.BinanceBase = "https://api.binance.com"
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polysniper.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	for i := range cfg.Strategies {
		s := &cfg.Strategies[i]
		if s.IntervalMinutes <= 0 {
			s.IntervalMinutes = 15
		}
		if s.NotionalPerTrade <= 0 {
			s.NotionalPerTrade = 1
		}
		if s.EntryTimeoutSecs <= 0 {
			s.EntryTimeoutSecs = 60
		}
		if s.CloseSafetySecs <= 0 {
			s.CloseSafetySecs = 120
		}
		if s.ExitDeadlineSecs <= 0 {
			s.ExitDeadlineSecs = 30
		}
		if s.MinShares <= 0 {
			s.MinShares = 5
		}
		if s.TickSize <= 0 {
			s.TickSize = 0.01
		}
		if s.Symbol == "" {
			s.Symbol = "BTCUSDT"
		}
	}
}

// validate rechaza configuraciones que el engine no puede ejecutar.
func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		if s.Tag == "" {
			return fmt.Errorf("strategy without tag")
		}
		if seen[s.Tag] {
			return fmt.Errorf("duplicate strategy tag %q", s.Tag)
		}
		seen[s.Tag] = true
		if s.Signal == "" {
			return fmt.Errorf("strategy %q: missing signal", s.Tag)
		}
		if s.Series == "" {
			return fmt.Errorf("strategy %q: missing series", s.Tag)
		}
		if s.EntryPriceCeiling < 0 || s.EntryPriceCeiling >= 1 {
			if s.EntryPriceCeiling != 0 {
				return fmt.Errorf("strategy %q: entry_price_ceiling must be in (0,1)", s.Tag)
			}
		}
	}
	return nil
}
