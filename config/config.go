// Package config defines the per-profile configuration value object. One
// engine instance is built from one Profile; running several brokerage
// accounts means loading several profiles, never copying code.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/intraday/market"
)

// Profile is the complete configuration of one trading profile.
type Profile struct {
	Trading TradingConfig `json:"trading" yaml:"trading"`
	Band    BandConfig    `json:"band" yaml:"band"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Outbox  OutboxConfig  `json:"outbox" yaml:"outbox"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Broker  BrokerConfig  `json:"broker" yaml:"broker"`
	Debug   DebugConfig   `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// TradingConfig describes the instrument and the evaluation window.
type TradingConfig struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Market   string `json:"market" yaml:"market"` // calendar market, e.g. "US"
	Timezone string `json:"timezone" yaml:"timezone"`

	// Session clock times in Timezone, "HH:MM".
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`

	CheckInterval   string `json:"check_interval" yaml:"check_interval"` // e.g. "5m"
	MaxTradesPerDay int    `json:"max_trades_per_day" yaml:"max_trades_per_day"`
}

// BandConfig holds the noise-band and entry-filter parameters. The volume
// filter compares the mean volume of the most recent bars against the mean
// over a longer window of the same day.
type BandConfig struct {
	LookbackDays  int     `json:"lookback_days" yaml:"lookback_days"`
	K1            float64 `json:"k1" yaml:"k1"`
	K2            float64 `json:"k2" yaml:"k2"`
	VolumeConfirm bool    `json:"volume_confirm,omitempty" yaml:"volume_confirm,omitempty"`
	VolumeRecent  int     `json:"volume_recent,omitempty" yaml:"volume_recent,omitempty"`
	VolumeWindow  int     `json:"volume_window,omitempty" yaml:"volume_window,omitempty"`
	VolumeRatio   float64 `json:"volume_ratio,omitempty" yaml:"volume_ratio,omitempty"`
}

// RiskConfig holds sizing, trailing exit and halt parameters.
type RiskConfig struct {
	Capital  float64 `json:"capital" yaml:"capital"`
	Leverage float64 `json:"leverage" yaml:"leverage"`

	TrailingTakeProfit bool    `json:"trailing_take_profit" yaml:"trailing_take_profit"`
	ActivationPct      float64 `json:"activation_pct" yaml:"activation_pct"`
	CallbackPct        float64 `json:"callback_pct" yaml:"callback_pct"`

	// Zero or negative disables the corresponding halt.
	ProfitTarget float64 `json:"profit_target" yaml:"profit_target"`
	MaxDailyLoss float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
}

// OutboxConfig locates the durable signal store.
type OutboxConfig struct {
	Path         string `json:"path" yaml:"path"`
	PurgeOnStart bool   `json:"purge_on_start,omitempty" yaml:"purge_on_start,omitempty"`
}

// JournalConfig selects the trade journal backend.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
}

// BrokerConfig points at the brokerage API. The access token is read from
// the environment, never from the profile file.
type BrokerConfig struct {
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	TokenEnv string `json:"token_env,omitempty" yaml:"token_env,omitempty"`
}

// DebugConfig pins the clock for dry runs. FixedTime is RFC 3339; Once
// evaluates a single tick and exits.
type DebugConfig struct {
	FixedTime string `json:"fixed_time,omitempty" yaml:"fixed_time,omitempty"`
	Once      bool   `json:"once,omitempty" yaml:"once,omitempty"`
}

// LoadFromFile loads a profile from a YAML or JSON file.
func LoadFromFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		if jsonErr := json.Unmarshal(data, p); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return p, nil
}

// SaveToFile writes the profile as YAML (.yaml/.yml) or indented JSON.
func (p *Profile) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(p)
	} else {
		data, err = json.MarshalIndent(p, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the profile. A profile that fails validation must never
// reach the engine.
func (p *Profile) Validate() error {
	if p.Trading.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	sess, ok := market.SessionFor(p.Trading.Market)
	if !ok {
		return fmt.Errorf("unknown market: %q", p.Trading.Market)
	}
	if _, err := p.Location(); err != nil {
		return fmt.Errorf("trading.timezone: %w", err)
	}
	start, err := ParseClock(p.Trading.Start)
	if err != nil {
		return fmt.Errorf("trading.start: %w", err)
	}
	end, err := ParseClock(p.Trading.End)
	if err != nil {
		return fmt.Errorf("trading.end: %w", err)
	}
	if end <= start {
		return fmt.Errorf("trading.end %s must be after trading.start %s", p.Trading.End, p.Trading.Start)
	}
	// Bars outside the market's regular session never reach the engine,
	// so a window poking out of it would evaluate against missing data.
	if start < sess.OpenMinute || end > sess.CloseMinute {
		return fmt.Errorf("trading window %s-%s outside %s session %s-%s",
			p.Trading.Start, p.Trading.End, p.Trading.Market,
			market.MinuteString(sess.OpenMinute), market.MinuteString(sess.CloseMinute))
	}
	iv, err := p.Interval()
	if err != nil {
		return fmt.Errorf("trading.check_interval: %w", err)
	}
	if iv < time.Minute {
		return fmt.Errorf("trading.check_interval %s must be at least one minute", iv)
	}
	if p.Trading.MaxTradesPerDay <= 0 {
		return fmt.Errorf("trading.max_trades_per_day must be positive")
	}
	if p.Band.LookbackDays <= 0 {
		return fmt.Errorf("band.lookback_days must be positive")
	}
	if p.Band.K1 < 0 || p.Band.K2 < 0 {
		return fmt.Errorf("band.k1 and band.k2 must be non-negative")
	}
	if p.Band.VolumeConfirm {
		if p.Band.VolumeRecent <= 0 || p.Band.VolumeWindow <= p.Band.VolumeRecent {
			return fmt.Errorf("band.volume_window must exceed band.volume_recent, both positive")
		}
		if p.Band.VolumeRatio <= 0 {
			return fmt.Errorf("band.volume_ratio must be positive")
		}
	}
	if p.Risk.Capital <= 0 {
		return fmt.Errorf("risk.capital must be positive")
	}
	if p.Risk.Leverage <= 0 {
		return fmt.Errorf("risk.leverage must be positive")
	}
	if p.Risk.TrailingTakeProfit {
		if p.Risk.ActivationPct <= 0 {
			return fmt.Errorf("risk.activation_pct must be positive")
		}
		if p.Risk.CallbackPct <= 0 || p.Risk.CallbackPct >= 1 {
			return fmt.Errorf("risk.callback_pct must be between 0 and 1")
		}
	}
	// risk.profit_target and risk.max_daily_loss are each optional; zero
	// or negative disables that limit.
	if p.Outbox.Path == "" {
		return fmt.Errorf("outbox.path is required")
	}
	switch p.Journal.Type {
	case "sqlite":
		if p.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite journal")
		}
	case "csv":
		if p.Journal.TradesFile == "" {
			return fmt.Errorf("journal.trades_file required for csv journal")
		}
	case "none", "":
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'none'")
	}
	if p.Debug.FixedTime != "" {
		if _, err := time.Parse(time.RFC3339, p.Debug.FixedTime); err != nil {
			return fmt.Errorf("debug.fixed_time: %w", err)
		}
	}
	return nil
}

// Location resolves the trading timezone.
func (p *Profile) Location() (*time.Location, error) {
	return time.LoadLocation(p.Trading.Timezone)
}

// Interval parses the evaluation interval.
func (p *Profile) Interval() (time.Duration, error) {
	return time.ParseDuration(p.Trading.CheckInterval)
}

// StartMinute is the session start as a minute of day.
func (p *Profile) StartMinute() int {
	m, _ := ParseClock(p.Trading.Start)
	return m
}

// EndMinute is the session end as a minute of day.
func (p *Profile) EndMinute() int {
	m, _ := ParseClock(p.Trading.End)
	return m
}

// FixedTime returns the pinned debug clock, or the zero time when unset.
func (p *Profile) FixedTime() (time.Time, error) {
	if p.Debug.FixedTime == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, p.Debug.FixedTime)
}

// Token reads the brokerage access token from the configured environment
// variable.
func (p *Profile) Token() string {
	env := p.Broker.TokenEnv
	if env == "" {
		env = "LONGPORT_ACCESS_TOKEN"
	}
	return os.Getenv(env)
}

// ParseClock parses "HH:MM" into a minute of day.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return h*60 + m, nil
}

// Default returns a profile with sensible US-equity defaults. Loading a
// file overlays it, so partial profiles stay valid.
func Default() *Profile {
	return &Profile{
		Trading: TradingConfig{
			Symbol:          "TSLL.US",
			Market:          "US",
			Timezone:        "America/New_York",
			Start:           "09:40",
			End:             "15:45",
			CheckInterval:   "5m",
			MaxTradesPerDay: 3,
		},
		Band: BandConfig{
			LookbackDays: 10,
			K1:           1.2,
			K2:           1.2,
		},
		Risk: RiskConfig{
			Capital:            10000,
			Leverage:           1,
			TrailingTakeProfit: true,
			ActivationPct:      0.01,
			CallbackPct:        0.7,
			ProfitTarget:       500,
			MaxDailyLoss:       500,
		},
		Outbox: OutboxConfig{
			Path: "./signals.db",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./trades.db",
		},
	}
}
