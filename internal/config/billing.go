package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig holds operator-tunable billing behavior. It is loaded
// from billing.yml and hot-reloaded on change.
type BillingConfig struct {
	// OverdueGraceDays is how many days past the due date an open
	// invoice stays out of the overdue sweep.
	OverdueGraceDays int `mapstructure:"overdueGraceDays"`
	// InvoiceNumberPad is the zero-padded width of generated invoice
	// sequence numbers.
	InvoiceNumberPad int `mapstructure:"invoiceNumberPad"`
	// RecurringBatchSize caps how many due templates one scheduler pass
	// claims.
	RecurringBatchSize int `mapstructure:"recurringBatchSize"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		OverdueGraceDays:   0,
		InvoiceNumberPad:   5,
		RecurringBatchSize: 25,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/invobook/config")
	v.AddConfigPath("/etc/invobook")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INVOBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.overdueGraceDays", defaults.OverdueGraceDays)
	v.SetDefault("billing.invoiceNumberPad", defaults.InvoiceNumberPad)
	v.SetDefault("billing.recurringBatchSize", defaults.RecurringBatchSize)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config with no file
// watching. Used by tests and embedded setups.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.OverdueGraceDays < 0 {
		return errors.New("billing.overdueGraceDays cannot be negative")
	}
	if cfg.InvoiceNumberPad < 1 || cfg.InvoiceNumberPad > 12 {
		return errors.New("billing.invoiceNumberPad must be between 1 and 12")
	}
	if cfg.RecurringBatchSize < 1 {
		return errors.New("billing.recurringBatchSize must be positive")
	}
	return nil
}
