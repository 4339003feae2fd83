package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Whisper selects the speech-to-text backend. The URL points at an
// OpenAI-compatible /v1/audio/transcriptions endpoint; the remaining fields
// are forwarded as form fields for servers that honor them (speaches,
// faster-whisper-server) and are ignored by servers that don't.
type Whisper struct {
	URL         string        `env:"WHISPER_URL" envDefault:"http://localhost:8000/v1/audio/transcriptions"`
	Model       string        `env:"WHISPER_MODEL" envDefault:"base"`
	Device      string        `env:"WHISPER_DEVICE" envDefault:"cpu"`
	ComputeType string        `env:"WHISPER_COMPUTE_TYPE" envDefault:"int8"`
	CPUThreads  int           `env:"WHISPER_CPU_THREADS" envDefault:"4"`
	Timeout     time.Duration `env:"WHISPER_TIMEOUT" envDefault:"15m"`
}

// S3 configures an optional S3-compatible upload store. Leaving Bucket empty
// keeps uploads on the local filesystem.
type S3 struct {
	Bucket    string `env:"S3_BUCKET"`
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Prefix    string `env:"S3_PREFIX"`
}

// Enabled reports whether S3 storage is configured.
func (c S3) Enabled() bool { return c.Bucket != "" }

// Server configures the scribed HTTP server.
type Server struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5m"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	UploadDir   string `env:"UPLOAD_DIR" envDefault:"/tmp/uploads"`

	// MaxSegmentDuration is the threshold (seconds) above which audio is
	// split into segments and transcribed concurrently.
	MaxSegmentDuration int `env:"MAX_SEGMENT_DURATION" envDefault:"600"`
	MaxConcurrentTasks int `env:"MAX_CONCURRENT_TASKS" envDefault:"4"`

	WorkerAPIKey string `env:"WORKER_API_KEY"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	Whisper Whisper
	S3      S3
}

// Worker configures the scribe-worker poller. Exactly one queue transport is
// used: DATABASE_URL selects the Postgres queue, otherwise the worker polls
// the HTTP task API at APIBaseURL.
type Worker struct {
	DatabaseURL string `env:"DATABASE_URL"`
	APIBaseURL  string `env:"API_BASE_URL" envDefault:"http://localhost:3000"`
	APIKey      string `env:"WORKER_API_KEY"`

	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`

	// MaxSegmentDuration deliberately defaults higher than the server's:
	// batch jobs have no request deadline, so longer segments keep the
	// engine call count down.
	MaxSegmentDuration int `env:"MAX_SEGMENT_DURATION" envDefault:"900"`
	MaxConcurrentTasks int `env:"MAX_CONCURRENT_TASKS" envDefault:"4"`

	UploadDir string `env:"UPLOAD_DIR" envDefault:"/tmp/uploads"`
	TempDir   string `env:"TEMP_DIR" envDefault:"/tmp/worker"`

	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Whisper Whisper
}

// LoadServer reads server configuration from the environment, with an
// optional .env file. Priority: environment variables > .env > defaults.
func LoadServer() (*Server, error) {
	loadDotenv()
	cfg := &Server{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorker reads worker configuration from the environment, with an
// optional .env file.
func LoadWorker() (*Worker, error) {
	loadDotenv()
	cfg := &Worker{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotenv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}
