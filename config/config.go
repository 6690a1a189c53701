package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL      string
	REDIS_PASSWORD string
	REDIS_DB       string
	// Upload Configuration
	UPLOAD_DIR         string
	MAX_UPLOAD_MB      int
	ALLOWED_EXTENSIONS []string
	// Enrollment policy: whether a declined enrollment permits a new request
	ENROLL_ALLOW_RETRY_AFTER_DECLINE bool
}

// DefaultAllowedExtensions is the upload allow-list used when
// ALLOWED_EXTENSIONS is not set.
var DefaultAllowedExtensions = []string{
	"pdf", "doc", "docx", "ppt", "pptx",
	"mp4", "mp3", "wav",
	"jpg", "jpeg", "png", "gif",
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	maxUploadMB, err := strconv.Atoi(os.Getenv("MAX_UPLOAD_MB"))
	if err != nil || maxUploadMB <= 0 {
		maxUploadMB = 50
	}

	allowedExtensions := DefaultAllowedExtensions
	if raw := os.Getenv("ALLOWED_EXTENSIONS"); raw != "" {
		allowedExtensions = nil
		for _, ext := range strings.Split(raw, ",") {
			ext = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(ext, ".")))
			if ext != "" {
				allowedExtensions = append(allowedExtensions, ext)
			}
		}
	}

	allowRetry := true
	if raw := os.Getenv("ENROLL_ALLOW_RETRY_AFTER_DECLINE"); raw != "" {
		allowRetry = raw != "false"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL:      os.Getenv("REDIS_URL"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       os.Getenv("REDIS_DB"),
		// Uploads
		UPLOAD_DIR:         uploadDir,
		MAX_UPLOAD_MB:      maxUploadMB,
		ALLOWED_EXTENSIONS: allowedExtensions,

		ENROLL_ALLOW_RETRY_AFTER_DECLINE: allowRetry,
	}

	return envVariables, nil
}
