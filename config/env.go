package config

import (
	"github.com/joho/godotenv"
)

// LoadEnv loads .env into the process environment. A missing file is ignored;
// variables can be set by other means.
func LoadEnv() {
	_ = godotenv.Load()
}
