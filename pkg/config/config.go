package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvFileVar names an environment variable that points at the env file when
// the -env flag is not given.
const EnvFileVar = "BOT_ENV_FILE"

var (
	envFilePath string
	parseOnce   sync.Once

	exportOnce sync.Once
	exportErr  error
)

func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(err)
	}
	return conf
}

// New fills T from the environment under prefix. The env file, if any, is
// exported once per process; variables already set in the environment win.
func New[T any](prefix string) (*T, error) {
	exportOnce.Do(func() {
		exportErr = exportResolved()
	})
	if exportErr != nil {
		return nil, exportErr
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, fmt.Errorf("config %s: %w", prefixName(prefix), err)
	}
	return &conf, nil
}

func exportResolved() error {
	if path := resolveEnvPath(); path != "" {
		if err := exportEnvironment(path); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		return nil
	}
	if err := exportEnvironmentIfExists(".env"); err != nil {
		return fmt.Errorf("failed to load default env file: %w", err)
	}
	return nil
}

func resolveEnvPath() string {
	parseOnce.Do(func() {
		if flag.Lookup("env") == nil {
			flag.StringVar(&envFilePath, "env", "", "path to .env or .yaml config file")
		}
		if !flag.Parsed() {
			flag.Parse()
		}
	})
	if p := strings.TrimSpace(envFilePath); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(EnvFileVar))
}

func exportEnvironmentIfExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return exportEnvironment(path)
}

// exportEnvironment reads a dotenv or yaml file and sets every key that is
// not yet present in the environment. Nested yaml keys join with "_".
func exportEnvironment(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if strings.HasSuffix(path, ".env") || !strings.Contains(lastSegment(path), ".") {
		v.SetConfigType("env")
	}
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for _, k := range v.AllKeys() {
		name := strings.ToUpper(strings.ReplaceAll(k, ".", "_"))
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, fmt.Sprint(v.Get(k))); err != nil {
			return err
		}
	}
	return nil
}

func lastSegment(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func prefixName(prefix string) string {
	if prefix == "" {
		return "root"
	}
	return prefix
}
