package dio

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/brickingsoft/dio/pkg/process"
	"github.com/brickingsoft/dio/pkg/scheduler"
	"github.com/brickingsoft/errors"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the engine options. Zero fields keep their defaults.
type Config struct {
	Backend         Backend            `yaml:"backend"`
	Depth           int                `yaml:"depth"`
	Budgets         *scheduler.Budgets `yaml:"budgets"`
	WaitTimeout     time.Duration      `yaml:"wait_timeout"`
	MergeLimit      int                `yaml:"merge_limit"`
	Affinity        *AffinityConfig    `yaml:"affinity"`
	CallbackWorkers int                `yaml:"callback_workers"`
	Priority        string             `yaml:"priority"`
}

type AffinityConfig struct {
	Submitter int `yaml:"submitter"`
	Completer int `yaml:"completer"`
}

// LoadConfig
// 读取 YAML 配置文件，未知字段视为错误。
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configFailed("read config failed", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	config := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && err != io.EOF {
		return nil, configFailed("parse config failed", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (config *Config) validate() error {
	if config.Depth < 0 {
		return configFailed("depth must not be negative", ErrInvalidDepth)
	}
	if config.Budgets != nil {
		if err := config.Budgets.Validate(); err != nil {
			return configFailed("invalid budgets", err)
		}
	}
	if config.WaitTimeout < 0 || config.MergeLimit < 0 || config.CallbackWorkers < 0 {
		return configFailed("durations and sizes must not be negative", ErrInvalidConfig)
	}
	if _, err := process.ParsePriority(config.Priority); err != nil {
		return configFailed("invalid priority", err)
	}
	return nil
}

// Options converts the config into engine options.
func (config *Config) Options() []Option {
	options := []Option{WithBackend(config.Backend)}
	if config.Depth > 0 {
		options = append(options, WithDepth(config.Depth))
	}
	if config.Budgets != nil {
		options = append(options, WithBudgets(*config.Budgets))
	}
	if config.WaitTimeout > 0 {
		options = append(options, WithWaitTimeout(config.WaitTimeout))
	}
	if config.MergeLimit > 0 {
		options = append(options, WithMergeLimit(config.MergeLimit))
	}
	if config.Affinity != nil {
		options = append(options, WithAffinityCPU(config.Affinity.Submitter, config.Affinity.Completer))
	}
	if config.CallbackWorkers > 0 {
		options = append(options, WithCallbackWorkers(config.CallbackWorkers))
	}
	return options
}

// ProcessPriority is the configured priority, NORM when unset.
func (config *Config) ProcessPriority() process.Priority {
	priority, _ := process.ParsePriority(config.Priority)
	return priority
}

// UseProcessPriority
// 设置进程优先级，提高优先级需要 CAP_SYS_NICE。
func UseProcessPriority(level process.Priority) error {
	return process.SetCurrentProcessPriority(level)
}

func configFailed(msg string, cause error) error {
	return errors.New(
		msg,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpConfig),
		errors.WithWrap(cause),
	)
}
