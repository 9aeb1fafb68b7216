package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"elapsed_tracker/internal/infra/config"
)

func TestInit_LevelAndFormatter(t *testing.T) {
	Init(&config.AppConfig{LogLevel: "debug", Environment: "production"})
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, Log.Formatter)

	Init(&config.AppConfig{LogLevel: "loud", Environment: "development"})
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, Log.Formatter)
}

func TestComponent(t *testing.T) {
	entry := Component("scheduler")
	assert.Equal(t, "scheduler", entry.Data["component"])
}
