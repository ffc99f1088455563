package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3/log"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type serverConfig struct {
	Port        int    `koanf:"port" validate:"required"`
	Mode        string `koanf:"mode" validate:"required"`
	Concurrency int    `koanf:"concurrency" validate:"required"`
	BodyLimit   int    `koanf:"body_limit" validate:"required"`
	AppName     string `koanf:"app_name" validate:"required"`
}

type logLevel string

const (
	Debug logLevel = "debug"
	Info  logLevel = "info"
	Warn  logLevel = "warn"
	Error logLevel = "error"
	Fatal logLevel = "fatal"
	Panic logLevel = "panic"
)

type Module string

const (
	ModuleMilvus    Module = "milvus"
	ModuleIngest    Module = "ingest"
	ModuleDatabase  Module = "database"
	ModuleOpenAI    Module = "openai"
	ModuleS3        Module = "s3"
	ModuleServer    Module = "server"
	ModuleSetting   Module = "setting"
	ModuleRetriever Module = "retriever"
	ModuleTeaching  Module = "teaching"
	ModuleTracker   Module = "tracker"
	ModuleAssembler Module = "assembler"
	ModuleSession   Module = "session"
	ModuleTutor     Module = "tutor"
	ModuleUpload    Module = "upload"
)

type databaseConfig struct {
	Host         string   `koanf:"host" validate:"required"`
	Port         int      `koanf:"port" validate:"required"`
	User         string   `koanf:"user" validate:"required"`
	Password     string   `koanf:"password"`
	Name         string   `koanf:"name" validate:"required"`
	ReplicaHosts []string `koanf:"replica_hosts"`
	MaxIdleConns int      `koanf:"max_idle_conns" validate:"required"`
	MaxOpenConns int      `koanf:"max_open_conns" validate:"required"`
	MaxLifetime  int      `koanf:"max_lifetime" validate:"required"`
}

type openaiConfig struct {
	Key            string `koanf:"key"`
	BaseURL        string `koanf:"base_url"`
	Model          string `koanf:"model" validate:"required"`
	EmbeddingModel string `koanf:"embedding_model" validate:"required"`
}

type corsConfig struct {
	AllowOrigins []string `koanf:"allow_origins"`
	AllowMethods []string `koanf:"allow_methods"`
	AllowHeaders []string `koanf:"allow_headers"`
}

type milvusConfig struct {
	Address         string          `koanf:"address" validate:"required"`
	Collection      string          `koanf:"collection" validate:"required"`
	IndexHNSWConfig indexHNSWConfig `koanf:"index_hnsw_config"`
}

type indexHNSWConfig struct {
	MetricType     string `koanf:"metric_type"`
	M              int    `koanf:"m"`
	EfConstruction int    `koanf:"ef_construction"`
}

type s3Config struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`
	UseSSL    bool   `koanf:"use_ssl"`
	Bucket    string `koanf:"bucket"`
}

type ingestConfig struct {
	ChunkTokens  int `koanf:"chunk_tokens" validate:"required"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// retrieverConfig holds the knobs of the retrieval engine. MinRelevance is the
// cosine score under which a result set is flagged low-confidence; it is a
// tunable, not a derived value.
type retrieverConfig struct {
	TopKMax         int     `koanf:"top_k_max" validate:"required"`
	TopKDefault     int     `koanf:"top_k_default" validate:"required"`
	MinRelevance    float32 `koanf:"min_relevance"`
	EmbedTimeoutMs  int     `koanf:"embed_timeout_ms" validate:"required"`
	SearchTimeoutMs int     `koanf:"search_timeout_ms" validate:"required"`
	Backend         string  `koanf:"backend" validate:"required"` // milvus | memory
}

// tutorConfig drives the adaptive teaching behaviour.
type tutorConfig struct {
	WrongStreakThreshold int `koanf:"wrong_streak_threshold" validate:"required"`
	TopicWrongThreshold  int `koanf:"topic_wrong_threshold" validate:"required"`
	TopicClearStreak     int `koanf:"topic_clear_streak" validate:"required"`
	FastLatencyMs        int `koanf:"fast_latency_ms" validate:"required"`
	ExcellingWindow      int `koanf:"excelling_window" validate:"required"`
	SectionsPerChapter   int `koanf:"sections_per_chapter" validate:"required"`
	QuizQuestions        int `koanf:"quiz_questions" validate:"required"`
	QuizAdvancedPct      int `koanf:"quiz_advanced_pct" validate:"required"`
	QuizPassPct          int `koanf:"quiz_pass_pct" validate:"required"`
}

// assemblerConfig bounds the prompt payload.
type assemblerConfig struct {
	BudgetTokens      int `koanf:"budget_tokens" validate:"required"`
	WindowTurns       int `koanf:"window_turns" validate:"required"`
	MaxToolRoundTrips int `koanf:"max_tool_round_trips" validate:"required"`
	LLMTimeoutMs      int `koanf:"llm_timeout_ms" validate:"required"`
}

type config struct {
	Server    serverConfig    `koanf:"server"`
	Database  databaseConfig  `koanf:"database"`
	OpenAI    openaiConfig    `koanf:"openai"`
	LogLevel  logLevel        `koanf:"log_level"`
	Dns       string          `koanf:"dns"`
	S3        s3Config        `koanf:"s3"`
	Cors      corsConfig      `koanf:"cors"`
	Milvus    milvusConfig    `koanf:"milvus"`
	Ingest    ingestConfig    `koanf:"ingest"`
	Retriever retrieverConfig `koanf:"retriever"`
	Tutor     tutorConfig     `koanf:"tutor"`
	Assembler assemblerConfig `koanf:"assembler"`
}

func buildMySQLDSN(cfg databaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)
}

// ReplicaDSNs returns DSNs for configured read replicas.
func ReplicaDSNs() []string {
	out := make([]string, 0, len(Cfg.Database.ReplicaHosts))
	for _, host := range Cfg.Database.ReplicaHosts {
		replica := Cfg.Database
		replica.Host = host
		out = append(out, buildMySQLDSN(replica))
	}
	return out
}

var defaultConfig = config{
	Server: serverConfig{
		Port:        8000,
		Mode:        "release",
		Concurrency: 256,
		BodyLimit:   4 << 20,
		AppName:     "ai-book-tutor",
	},
	Database: databaseConfig{
		Host:         "127.0.0.1",
		Port:         3306,
		User:         "root",
		Password:     "",
		Name:         "booktutor",
		MaxIdleConns: 5,
		MaxOpenConns: 20,
		MaxLifetime:  30,
	},
	OpenAI: openaiConfig{
		Key:            "",
		Model:          "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
	},
	LogLevel: Info,
	S3: s3Config{
		Endpoint:  "http://localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
		UseSSL:    false,
		Bucket:    "curriculum",
	},
	Milvus: milvusConfig{
		Address:    "localhost:19530",
		Collection: "book_chunks",
		IndexHNSWConfig: indexHNSWConfig{
			MetricType:     "COSINE",
			M:              16,
			EfConstruction: 200,
		},
	},
	Ingest: ingestConfig{
		ChunkTokens:  600,
		ChunkOverlap: 80,
	},
	Retriever: retrieverConfig{
		TopKMax:         10,
		TopKDefault:     5,
		MinRelevance:    0.25,
		EmbedTimeoutMs:  3000,
		SearchTimeoutMs: 1000,
		Backend:         "milvus",
	},
	Tutor: tutorConfig{
		WrongStreakThreshold: 3,
		TopicWrongThreshold:  2,
		TopicClearStreak:     2,
		FastLatencyMs:        8000,
		ExcellingWindow:      5,
		SectionsPerChapter:   4,
		QuizQuestions:        10,
		QuizAdvancedPct:      90,
		QuizPassPct:          50,
	},
	Assembler: assemblerConfig{
		BudgetTokens:      3000,
		WindowTurns:       12,
		MaxToolRoundTrips: 2,
		LLMTimeoutMs:      10000,
	},
}

var (
	Cfg  = defaultConfig
	once sync.Once
)

func init() {
	path := "config.yaml"

	once.Do(func() {
		k := koanf.New(".")

		validate := validator.New()
		// defaults
		Cfg = defaultConfig

		// file
		if e := k.Load(file.Provider(path), yaml.Parser()); e != nil && !os.IsNotExist(e) {
			return
		}

		// env APP_SERVER_PORT
		if e := k.Load(env.Provider("APP_", ".", func(s string) string {
			return strings.ToLower(strings.TrimPrefix(s, "APP_"))
		}), nil); e != nil {
			return
		}

		// bind
		if e := k.Unmarshal("", &Cfg); e != nil {
			log.Errorf("failed to unmarshal config: %v", e)
		}

		if Cfg.Dns == "" {
			Cfg.Dns = buildMySQLDSN(Cfg.Database)
		}

		// validate config
		if err := validate.Struct(Cfg); err != nil {
			if errs, ok := err.(validator.ValidationErrors); ok {
				var sb strings.Builder
				sb.WriteString(fmt.Sprintf("%v Config validation failed:\n", ModuleSetting))

				for _, e := range errs {
					sb.WriteString(
						fmt.Sprintf("  • %s: failed '%s' (value: %v)\n", e.Field(), e.Tag(), e.Value()),
					)
				}

				log.Error(sb.String())
			} else {
				log.Errorf("config validation failed: %v", err)
			}
		}
	})

}
