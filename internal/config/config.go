package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Paths captures the config files used during LoadConfig.
type Paths struct {
	Default string
	Global  string
	Project string
}

// Settings is the resolved configuration handed to the generation
// orchestrator. It is a plain value so callers never read the process
// environment themselves.
type Settings struct {
	Backend string

	LlamaModelPath string
	LlamaBinPath   string
	LlamaThreads   int

	OpenAIKey          string
	OpenAIEndpoint     string
	OpenAIModel        string
	OpenAISystemPrompt string

	ProgressInterval time.Duration
	SettleDelay      time.Duration

	LogLevel string

	// Fs is where backends look for local files such as the model. Nil
	// means the OS filesystem.
	Fs afero.Fs
}

const (
	DefaultBackend            = "auto"
	DefaultLlamaThreads       = 4
	DefaultOpenAIEndpoint     = "https://api.openai.com/v1/chat/completions"
	DefaultOpenAIModel        = "gpt-4"
	DefaultOpenAISystemPrompt = "You are an expert Java developer. Write a complete Java class based on the user prompt."
	DefaultProgressInterval   = 500 * time.Millisecond
	DefaultSettleDelay        = 500 * time.Millisecond
	DefaultLogLevel           = "warn"
)

var currentConfig *viper.Viper

var (
	ErrUnknownKey   = errors.New("unknown config key")
	ErrInvalidValue = errors.New("invalid config value")
)

// Kind describes how a config value is parsed.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindDuration
	KindLevel
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindDuration:
		return "duration"
	case KindLevel:
		return "level"
	default:
		return "string"
	}
}

// Key is a setting codeagent reads.
type Key struct {
	Name        string
	Kind        Kind
	Secret      bool
	Description string
}

var keys = []Key{
	{Name: "defaults.backend", Kind: KindString, Description: "backend name, or auto"},
	{Name: "llama.model_path", Kind: KindString, Description: "GGUF model file (LLAMA_MODEL_PATH)"},
	{Name: "llama.bin_path", Kind: KindString, Description: "llama-cli executable (LLAMA_BIN_PATH)"},
	{Name: "llama.threads", Kind: KindInt, Description: "inference threads"},
	{Name: "openai.api_key", Kind: KindString, Secret: true, Description: "API key (OPENAI_API_KEY)"},
	{Name: "openai.endpoint", Kind: KindString, Description: "chat completions URL"},
	{Name: "openai.model", Kind: KindString, Description: "chat model"},
	{Name: "openai.system_prompt", Kind: KindString, Description: "system message sent before the prompt"},
	{Name: "ui.progress_interval", Kind: KindDuration, Description: "indicator redraw interval"},
	{Name: "ui.settle_delay", Kind: KindDuration, Description: "pause before printing the outcome"},
	{Name: "logging.level", Kind: KindLevel, Description: "trace, debug, info, warn or error"},
}

// Keys returns the settings codeagent understands, in display order.
func Keys() []Key {
	return append([]Key(nil), keys...)
}

// LookupKey finds a known key. Names are case-insensitive.
func LookupKey(name string) (Key, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, key := range keys {
		if key.Name == name {
			return key, true
		}
	}
	return Key{}, false
}

// Validate reports whether value is acceptable for the named key, using
// the same rules Resolve applies when reading it back.
func Validate(name, value string) error {
	key, ok := LookupKey(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}

	value = strings.TrimSpace(value)
	switch key.Kind {
	case KindInt:
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidValue, key.Name, value)
		}
	case KindDuration:
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed < 0 {
			return fmt.Errorf("%w: %s must be a duration such as 500ms, got %q", ErrInvalidValue, key.Name, value)
		}
	case KindLevel:
		switch strings.ToLower(value) {
		case "trace", "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("%w: %s must be trace, debug, info, warn or error, got %q", ErrInvalidValue, key.Name, value)
		}
	}
	return nil
}

// LoadConfig loads and merges configuration in priority order:
// default -> global -> project (highest).
func LoadConfig(projectDir string) (Paths, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CODEAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	paths := Paths{
		Default: defaultConfigPath(),
		Global:  globalConfigPath(),
		Project: projectConfigPath(projectDir),
	}

	if err := readConfigFile(v, paths.Default); err != nil {
		return paths, err
	}
	if err := mergeConfigFile(v, paths.Global); err != nil {
		return paths, err
	}
	if err := mergeConfigFile(v, paths.Project); err != nil {
		return paths, err
	}

	currentConfig = v

	return paths, nil
}

// GetConfig returns a config value as a string with env overrides applied.
func GetConfig(key string) (string, bool) {
	if key == "" {
		return "", false
	}

	if legacyKey, ok := legacyEnvOverrides()[key]; ok {
		if value, found := os.LookupEnv(legacyKey); found {
			return value, true
		}
	}

	if currentConfig == nil {
		return "", false
	}

	if !currentConfig.IsSet(key) {
		return "", false
	}

	return valueToString(currentConfig.Get(key)), true
}

// Resolve builds Settings from the loaded configuration. Keys that are
// unset or malformed fall back to their defaults.
func Resolve() Settings {
	return Settings{
		Backend:            stringValue("defaults.backend", DefaultBackend),
		LlamaModelPath:     stringValue("llama.model_path", ""),
		LlamaBinPath:       stringValue("llama.bin_path", ""),
		LlamaThreads:       intValue("llama.threads", DefaultLlamaThreads),
		OpenAIKey:          stringValue("openai.api_key", ""),
		OpenAIEndpoint:     stringValue("openai.endpoint", DefaultOpenAIEndpoint),
		OpenAIModel:        stringValue("openai.model", DefaultOpenAIModel),
		OpenAISystemPrompt: stringValue("openai.system_prompt", DefaultOpenAISystemPrompt),
		ProgressInterval:   durationValue("ui.progress_interval", DefaultProgressInterval),
		SettleDelay:        durationValue("ui.settle_delay", DefaultSettleDelay),
		LogLevel:           stringValue("logging.level", DefaultLogLevel),
	}
}

// SetConfig validates value and writes it to the global config file.
func SetConfig(key, value string) error {
	if key == "" {
		return errors.New("config key is required")
	}
	if err := Validate(key, value); err != nil {
		return err
	}
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	globalPath := globalConfigPath()
	if globalPath == "" {
		return errors.New("global config path is not available")
	}

	if err := os.MkdirAll(filepath.Dir(globalPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(globalPath)
	if fileExists(globalPath) {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read global config: %w", err)
		}
	}

	v.Set(key, value)
	if err := v.WriteConfigAs(globalPath); err != nil {
		return fmt.Errorf("write global config: %w", err)
	}

	if currentConfig != nil {
		currentConfig.Set(key, value)
	}

	return nil
}

// ListConfig returns a flattened view of the current configuration.
// Secrets are masked.
func ListConfig() (map[string]string, error) {
	if currentConfig == nil {
		return nil, errors.New("config not loaded")
	}

	settings := currentConfig.AllSettings()
	flattened := map[string]string{}
	flattenSettings("", settings, flattened)
	for key := range flattened {
		if isSecret(key) && flattened[key] != "" {
			flattened[key] = "********"
		}
	}
	return flattened, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("defaults.backend", DefaultBackend)
	v.SetDefault("llama.threads", DefaultLlamaThreads)
	v.SetDefault("openai.endpoint", DefaultOpenAIEndpoint)
	v.SetDefault("openai.model", DefaultOpenAIModel)
	v.SetDefault("openai.system_prompt", DefaultOpenAISystemPrompt)
	v.SetDefault("ui.progress_interval", DefaultProgressInterval.String())
	v.SetDefault("ui.settle_delay", DefaultSettleDelay.String())
	v.SetDefault("logging.level", DefaultLogLevel)
}

func defaultConfigPath() string {
	if path, ok := os.LookupEnv("CODEAGENT_DEFAULT_CONFIG"); ok && path != "" {
		return path
	}

	var candidates []string
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(exeDir, "config", "default.yaml"),
			filepath.Join(exeDir, "..", "config", "default.yaml"),
		)
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "codeagent", "config", "default.yaml"))
	}

	for _, candidate := range candidates {
		if fileExists(candidate) {
			return candidate
		}
	}

	return ""
}

// GlobalConfigPath is the file SetConfig writes to.
func GlobalConfigPath() string {
	return globalConfigPath()
}

func globalConfigPath() string {
	if path, ok := os.LookupEnv("CODEAGENT_GLOBAL_CONFIG"); ok && path != "" {
		return path
	}

	configDir := configDir()
	if configDir == "" {
		return ""
	}

	return filepath.Join(configDir, "config.yaml")
}

func projectConfigPath(projectDir string) string {
	if projectDir == "" {
		return ""
	}

	info, err := os.Stat(projectDir)
	if err != nil || !info.IsDir() {
		return ""
	}

	name := os.Getenv("CODEAGENT_PROJECT_CONFIG_NAME")
	if name == "" {
		name = ".codeagent.yaml"
	}

	return filepath.Join(projectDir, name)
}

func configDir() string {
	if path, ok := os.LookupEnv("CODEAGENT_CONFIG_DIR"); ok && path != "" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "codeagent")
}

func readConfigFile(v *viper.Viper, path string) error {
	if !fileExists(path) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if !fileExists(path) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}

	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// legacyEnvOverrides maps config keys to the bare variable names the tool
// has always honoured. They win over files and CODEAGENT_ variables.
func legacyEnvOverrides() map[string]string {
	return map[string]string{
		"llama.model_path": "LLAMA_MODEL_PATH",
		"llama.bin_path":   "LLAMA_BIN_PATH",
		"openai.api_key":   "OPENAI_API_KEY",
	}
}

func isSecret(name string) bool {
	if key, ok := LookupKey(name); ok {
		return key.Secret
	}
	return strings.HasSuffix(name, "api_key")
}

func stringValue(key, fallback string) string {
	value, ok := GetConfig(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func intValue(key string, fallback int) int {
	value, ok := GetConfig(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func durationValue(key string, fallback time.Duration) time.Duration {
	value, ok := GetConfig(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func valueToString(value interface{}) string {
	switch typed := value.(type) {
	case []string:
		return strings.Join(typed, ",")
	case []interface{}:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(value)
	}
}

func flattenSettings(prefix string, value interface{}, out map[string]string) {
	if value == nil {
		return
	}

	switch typed := value.(type) {
	case map[string]interface{}:
		for key, item := range typed {
			nextKey := key
			if prefix != "" {
				nextKey = prefix + "." + key
			}
			flattenSettings(nextKey, item, out)
		}
	case map[interface{}]interface{}:
		for key, item := range typed {
			keyText := fmt.Sprint(key)
			nextKey := keyText
			if prefix != "" {
				nextKey = prefix + "." + keyText
			}
			flattenSettings(nextKey, item, out)
		}
	default:
		if prefix == "" {
			return
		}
		out[prefix] = valueToString(value)
	}
}
