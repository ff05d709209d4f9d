package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"wiser-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// MySQL (main Wiser database: tenants, branch administration)
	DatabaseHost                   string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                   int           `env:"DB_PORT" env-default:"3306"`
	DatabaseUserName               string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword               string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                   string        `env:"DB_NAME" env-default:"wiser"`
	DatabaseMaxOpenConns           int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns           int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime        time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseRetryMaxAttempts       int           `env:"DB_RETRY_MAX_ATTEMPTS" env-default:"3"`
	DatabaseRetryConnectionBackoff time.Duration `env:"DB_RETRY_CONNECTION_BACKOFF" env-default:"5s"`
	DatabaseMigrationFolderPath    string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/mysql"`
	DatabaseMigrationVersion       int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationAutoRollback  bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Tenant databases
	TenantEncryptionKey   string        `env:"TENANT_ENCRYPTION_KEY" env-default:""`
	TenantMaxOpenConns    int           `env:"TENANT_DB_MAX_OPEN_CONNS" env-default:"5"`
	TenantMaxIdleConns    int           `env:"TENANT_DB_MAX_IDLE_CONNS" env-default:"2"`
	TenantConnMaxLifetime time.Duration `env:"TENANT_DB_CONN_MAX_LIFETIME" env-default:"10s"`

	// Branching
	BranchExcludedEntityTypes []string      `env:"BRANCH_EXCLUDED_ENTITY_TYPES" env-default:"basket,basketline,order,orderline,account,klant,relatie"`
	BranchSkipCopyTables      []string      `env:"BRANCH_SKIP_COPY_TABLES" env-default:"wiser_history,wiser_import,wiser_export,wiser_communication_generated,ajax_login_attempts"`
	MergeLockTTL              time.Duration `env:"MERGE_LOCK_TTL" env-default:"30m"`

	// Redis (merge mutex)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka Producer (branch lifecycle events)
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"branch-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	TracingEnabled      bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPProtocol string `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`
}
