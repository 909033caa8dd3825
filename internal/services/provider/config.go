package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	BaseURL     string `env:"PROVIDER_BASE_URL" validate:"required,url"`
	AgencyUID   string `env:"PROVIDER_AGENCY_UID" validate:"required"`
	AESKey      string `env:"PROVIDER_AES_KEY" validate:"required"`
	LaunchPath  string `env:"PROVIDER_LAUNCH_PATH" default:"/game/v1" validate:"startswith=/"`
	HistoryPath string `env:"PROVIDER_HISTORY_PATH" default:"/game/transaction/list" validate:"startswith=/"`
	CallbackURL string `env:"PROVIDER_CALLBACK_URL" validate:"required,url"`
	HomeURL     string `env:"PROVIDER_HOME_URL" default:""`

	MaxCredit          decimal.Decimal `env:"PROVIDER_MAX_CREDIT" default:"1000000"`
	TimestampTolerance time.Duration   `env:"PROVIDER_TIMESTAMP_TOLERANCE" default:"5m" validate:"gt=0"`
	LaunchTimeout      time.Duration   `env:"PROVIDER_LAUNCH_TIMEOUT" default:"30s" validate:"gt=0"`
	RequestTimeout     time.Duration   `env:"PROVIDER_REQUEST_TIMEOUT" default:"10s" validate:"gt=0"`
}
