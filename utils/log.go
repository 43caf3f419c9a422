package utils

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is an instance of logrus.Logger
// Logger is to be used for all logging
var Logger *logrus.Logger

// initLogger initializes the logger with apropriate configuration options
func initLogger(config *Config) {
	Logger = GetNewFileLogger(config.LogFileName, config.LogMaxSize, config.LogLevel)
	Logger.Info("Logger started")
}

// GetNewFileLogger returns a JSON logger writing to a rotated file. fileName
// "stdout" writes to the console instead.
func GetNewFileLogger(fileName string, maxSize int, logLevel string) *logrus.Logger {
	if fileName == "" {
		fileName = "./finance.log"
	}

	if maxSize == 0 {
		maxSize = 50
	}

	if logLevel == "" {
		logLevel = "info"
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		panic(err)
	}

	logger := &logrus.Logger{
		Formatter: &logrus.JSONFormatter{},
		Hooks:     make(logrus.LevelHooks),
		Level:     level,
	}

	if fileName == "stdout" {
		logger.Out = os.Stdout
	} else {
		logger.Out = &lumberjack.Logger{
			Filename: fileName,
			MaxSize:  maxSize, // MB
		}
	}

	return logger
}
