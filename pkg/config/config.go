package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Context    ContextConfig    `mapstructure:"context"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge"`
	Auth       AuthConfig       `mapstructure:"auth"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

type ClassifierConfig struct {
	ForceThreshold     float64 `mapstructure:"force_threshold"`
	MultiStepThreshold float64 `mapstructure:"multi_step_threshold"`
}

type ContextConfig struct {
	MaxRecentMessages int `mapstructure:"max_recent_messages"`
	CharsPerToken     int `mapstructure:"chars_per_token"`
	FileTokenOverhead int `mapstructure:"file_token_overhead"`
	SummaryEvery      int `mapstructure:"summary_every"`
}

type AgentConfig struct {
	EnableMultiStep bool   `mapstructure:"enable_multi_step"`
	MaxRounds       int    `mapstructure:"max_rounds"`
	SystemPrompt    string `mapstructure:"system_prompt"`
}

type ToolsConfig struct {
	Tasks    TasksConfig    `mapstructure:"tasks"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Search   SearchConfig   `mapstructure:"search"`
}

type TasksConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Token     string `mapstructure:"token"`
	Workspace string `mapstructure:"workspace"`
}

type CalendarConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Token      string `mapstructure:"token"`
	CalendarID string `mapstructure:"calendar_id"`
}

type SearchConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	MaxResults int    `mapstructure:"max_results"`
}

type KnowledgeConfig struct {
	DataDir        string `mapstructure:"data_dir"`
	TopK           int    `mapstructure:"top_k"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("classifier.force_threshold", 0.6)
	v.SetDefault("classifier.multi_step_threshold", 0.3)
	v.SetDefault("context.max_recent_messages", 20)
	v.SetDefault("context.chars_per_token", 4)
	v.SetDefault("context.file_token_overhead", 50)
	v.SetDefault("context.summary_every", 10)
	v.SetDefault("agent.enable_multi_step", true)
	v.SetDefault("agent.max_rounds", 6)
	v.SetDefault("agent.system_prompt", "You are Quibit, a helpful assistant with access to the user's tasks, calendar, documents and knowledge base. Use tools when they can answer the request better than recall.")
	v.SetDefault("tools.search.max_results", 5)
	v.SetDefault("knowledge.data_dir", "data")
	v.SetDefault("knowledge.top_k", 5)
	v.SetDefault("knowledge.embedding_model", "text-embedding-3-small")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if secret := v.GetString("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if token := v.GetString("TASKS_API_TOKEN"); token != "" {
		config.Tools.Tasks.Token = token
	}
	if token := v.GetString("CALENDAR_API_TOKEN"); token != "" {
		config.Tools.Calendar.Token = token
	}
	if key := v.GetString("SEARCH_API_KEY"); key != "" {
		config.Tools.Search.APIKey = key
	}

	return &config, nil
}
