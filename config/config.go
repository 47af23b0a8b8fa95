package config

import (
	"dynosaur/common"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	Service Service `toml:"service" json:"service" yaml:"service"`
	Log     Log     `toml:"log" json:"log" yaml:"log"`
	HTTP    HTTP    `toml:"http" json:"http" yaml:"http"`
	Metrics Metrics `toml:"metrics" json:"metrics" yaml:"metrics"`
	Record  Record  `toml:"record" json:"record" yaml:"record"`
	Fetcher Fetcher `toml:"fetcher" json:"fetcher" yaml:"fetcher"`
	Updater Updater `toml:"updater" json:"updater" yaml:"updater"`
}

type Service struct {
	Name string `toml:"name" json:"name" yaml:"name"`
	// Interval of zero runs a single reconciliation and exits.
	Interval    common.Duration `toml:"interval" json:"interval" yaml:"interval"`
	ExitOnError bool            `toml:"exit_on_error" json:"exit_on_error" yaml:"exit_on_error"`
	Immediate   bool            `toml:"immediate" json:"immediate" yaml:"immediate"`
}

type Log struct {
	Level     *zapcore.Level `toml:"level" json:"level" yaml:"level"`
	Encoding  *string        `toml:"encoding" json:"encoding" yaml:"encoding"`
	InfoPath  *[]string      `toml:"info_path" json:"info_path" yaml:"info_path"`
	ErrorPath *[]string      `toml:"error_path" json:"error_path" yaml:"error_path"`
}

type HTTP struct {
	Timeout   common.Duration `toml:"timeout" json:"timeout" yaml:"timeout"`
	UserAgent string          `toml:"user_agent" json:"user_agent" yaml:"user_agent"`
}

type Metrics struct {
	Listen string `toml:"listen" json:"listen" yaml:"listen"`
	Path   string `toml:"path" json:"path" yaml:"path"`
}

type Record struct {
	Type string           `toml:"type" json:"type" yaml:"type"`
	Name string           `toml:"name" json:"name" yaml:"name"`
	TTL  *common.Duration `toml:"ttl,omitempty" json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

type Fetcher struct {
	Sources      []IPSource      `toml:"sources" json:"sources" yaml:"sources"`
	Transformers []IPTransformer `toml:"transformers,omitempty" json:"transformers,omitempty" yaml:"transformers,omitempty"`
}

type IPSource struct {
	Type   string         `toml:"type" json:"type" yaml:"type"`
	Source string         `toml:"source" json:"source" yaml:"source"`
	Config map[string]any `toml:"config,omitempty" json:"config,omitempty" yaml:"config,omitempty"`
}

type IPSourceSimpleConfig struct {
	Type    *common.Family  `mapstructure:"type"`
	Timeout common.Duration `mapstructure:"timeout"`
	// Strict requires the whole body, trimmed, to be one address.
	Strict bool `mapstructure:"strict"`
}

type IPSourceJSONConfig struct {
	Type    *common.Family  `mapstructure:"type"`
	Timeout common.Duration `mapstructure:"timeout"`
	Field   string          `mapstructure:"field"`
}

type IPSourceCloudflareTraceConfig struct {
	Type         *common.Family  `mapstructure:"type"`
	Timeout      common.Duration `mapstructure:"timeout"`
	ForceAddress string          `mapstructure:"force_address"`
	IPHost       bool            `mapstructure:"ip_host"`
}

type IPSourceInterfaceConfig struct {
	Type    common.Family         `mapstructure:"type"`
	Select  common.IPSelectMode   `mapstructure:"select"`
	Flags   []common.IPFilterFlag `mapstructure:"flags"`
	Exclude []common.CIDR         `mapstructure:"exclude"`
	Include []common.CIDR         `mapstructure:"include"`
}

type IPTransformer struct {
	Type   string         `toml:"type" json:"type" yaml:"type"`
	Config map[string]any `toml:"config,omitempty" json:"config,omitempty" yaml:"config"`
}

type IPTransformerMaskRewriteConfig struct {
	Mask      string    `mapstructure:"mask"`
	Overwrite common.IP `mapstructure:"overwrite"`
}

type Updater struct {
	Type   string         `toml:"type" json:"type" yaml:"type"`
	Config map[string]any `toml:"config,omitempty" json:"config,omitempty" yaml:"config,omitempty"`
}

type UpdaterCloudflareConfig struct {
	APIToken string `mapstructure:"api_token"`
	ZoneID   string `mapstructure:"zone_id"`
	ZoneName string `mapstructure:"zone_name"`
	Proxied  bool   `mapstructure:"proxied"`
	Comment  string `mapstructure:"comment"`
	BaseURL  string `mapstructure:"base_url"`
}

type UpdaterRFC2136Config struct {
	Server        string          `mapstructure:"server"`
	Zone          string          `mapstructure:"zone"`
	Net           string          `mapstructure:"net"`
	TsigName      string          `mapstructure:"tsig_name"`
	TsigSecret    string          `mapstructure:"tsig_secret"`
	TsigAlgorithm string          `mapstructure:"tsig_algorithm"`
	DefaultTTL    common.Duration `mapstructure:"default_ttl"`
	Timeout       common.Duration `mapstructure:"timeout"`
}
