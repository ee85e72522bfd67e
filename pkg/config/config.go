package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" validate:"required"`
	Hostname                  string        `koanf:"-"`
	ServerHost                string        `koanf:"server_host" default:"0.0.0.0"`
	ServerPort                int           `koanf:"server_port" default:"3690"`
	WorkerProcesses           int           `koanf:"worker_processes" default:"1"`
	WorkerPollInterval        time.Duration `koanf:"worker_poll_interval" default:"5s"`

	JWTSecret    string `koanf:"jwt_secret" validate:"required"`
	AuthUsername string `koanf:"auth_username" default:"librarian"`
	AuthPassword string `koanf:"auth_password" validate:"required"`
	AuthRealm    string `koanf:"auth_realm" default:"pilcrow"`

	GoogleBooksBaseURL           string        `koanf:"google_books_base_url" default:"https://www.googleapis.com/books/v1"`
	GoogleBooksCAFile            string        `koanf:"google_books_ca_file"`
	GoogleBooksTimeout           time.Duration `koanf:"google_books_timeout" default:"30s"`
	GoogleBooksRequestsPerSecond float64       `koanf:"google_books_requests_per_second" default:"2"`

	ClassificationSeedFile string `koanf:"classification_seed_file"`
}

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/pilcrow.yaml"
	dotenvFile        = ".env.local"
)

// New builds the config from defaults, then the yaml file pointed to by
// CONFIG_FILE, then environment variables. Later sources win.
func New() (*Config, error) {
	_ = godotenv.Load(dotenvFile)

	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}
	cfg.Hostname = hostname

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	err = k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return strings.ToLower(key), value
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config suitable for tests: in-memory database and
// fixed credentials.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.DatabaseConnectRetryCount = 1
	cfg.DatabaseConnectRetryDelay = 0
	cfg.ServerHost = "127.0.0.1"
	cfg.WorkerPollInterval = 10 * time.Millisecond
	cfg.JWTSecret = "test-secret"
	cfg.AuthPassword = "books"
	return cfg
}

func validate(cfg *Config) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("koanf")
	})

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WithStack(err)
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := fe.Field()
		missing = append(missing, fmt.Sprintf("%s (%s)", strings.ToUpper(key), key))
	}
	return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
}
