package reporter

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr  = ":8080"
	DefaultReportsCSV  = "hazard_reports.csv"
	DefaultUploadsDir  = "uploads"
	DefaultMaxUploadMB = 25
	DefaultAppName     = "hazard-reporter"
)

// EntityList accepts either a YAML sequence or one comma-separated string:
//
//	entities: [Flour Mill, Warehouse, Other]
//	entities: "Flour Mill, Warehouse, Other"
type EntityList []string

func (e *EntityList) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case yaml.ScalarNode:
		*e = splitList(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if it = strings.TrimSpace(it); it != "" {
				out = append(out, it)
			}
		}
		*e = out
		return nil
	default:
		return nil
	}
}

type NotifyConfig struct {
	// SyslogAddr enables report notifications when set (tcp host:port).
	SyslogAddr string        `yaml:"syslog_addr"`
	AppName    string        `yaml:"app_name"`
	Timeout    time.Duration `yaml:"timeout"`
}

type FileConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	ReportsCSV string `yaml:"reports_csv"`
	UploadsDir string `yaml:"uploads_dir"`
	// IndexDB is the SQLite side index. Empty disables it.
	IndexDB     string     `yaml:"index_db"`
	MaxUploadMB int        `yaml:"max_upload_mb"`
	Debug       bool       `yaml:"debug"`
	Entities    EntityList `yaml:"entities"`

	Notify NotifyConfig `yaml:"notify"`

	// Fixed labels added to every notification's structured-data (env, site).
	FixedLabels map[string]string `yaml:"fixed_labels"`
}

func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides cfg with HAZARD_* variables, after loading a .env file when one exists.
func ApplyEnv(cfg *FileConfig, dotenvPath string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if v := env("HAZARD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := env("HAZARD_REPORTS_CSV"); v != "" {
		cfg.ReportsCSV = v
	}
	if v := env("HAZARD_UPLOADS_DIR"); v != "" {
		cfg.UploadsDir = v
	}
	if v := env("HAZARD_INDEX_DB"); v != "" {
		cfg.IndexDB = v
	}
	if v := env("HAZARD_SYSLOG_ADDR"); v != "" {
		cfg.Notify.SyslogAddr = v
	}
	if v := env("HAZARD_ENTITIES"); v != "" {
		cfg.Entities = splitList(v)
	}
	if v := env("HAZARD_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		cfg.Debug = b
	}
	if v := env("HAZARD_MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		cfg.MaxUploadMB = n
	}
	return nil
}

// WithDefaults fills unset fields.
func (c FileConfig) WithDefaults() FileConfig {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.ReportsCSV == "" {
		c.ReportsCSV = DefaultReportsCSV
	}
	if c.UploadsDir == "" {
		c.UploadsDir = DefaultUploadsDir
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = DefaultMaxUploadMB
	}
	if len(c.Entities) == 0 {
		c.Entities = append(EntityList(nil), DefaultEntities...)
	}
	if c.Notify.AppName == "" {
		c.Notify.AppName = DefaultAppName
	}
	if c.Notify.Timeout <= 0 {
		c.Notify.Timeout = 3 * time.Second
	}
	return c
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
