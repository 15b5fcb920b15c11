package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// ClientConfig configures the terminal exam client.
type ClientConfig struct {
	APIURL         string
	MarkerPath     string
	LogPath        string
	LogLevel       string
	RequestTimeout time.Duration
	SubmitTimeout  time.Duration
}

// LoadClient reads the exam client settings. Flags in cmd/exam-client
// override these.
func LoadClient() *ClientConfig {
	_ = godotenv.Load()

	return &ClientConfig{
		APIURL:         getEnv("EXAM_API_URL", "http://localhost:8080"),
		MarkerPath:     getEnv("EXAM_MARKER_PATH", defaultClientPath("session.yaml")),
		LogPath:        getEnv("EXAM_CLIENT_LOG", defaultClientPath("client.log")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: time.Duration(getEnvInt("EXAM_REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		SubmitTimeout:  time.Duration(getEnvInt("EXAM_SUBMIT_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

func defaultClientPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "exstem-quiz", name)
}
