package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("ARI_TEST_STRING", "hello")
	if got := GetEnv("ARI_TEST_STRING", "fallback"); got != "hello" {
		t.Errorf("Expected hello, got %s", got)
	}
	if got := GetEnv("ARI_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("ARI_TEST_INT", "42")
	if got := GetEnvInt("ARI_TEST_INT", 7); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	t.Setenv("ARI_TEST_INT", "not-a-number")
	if got := GetEnvInt("ARI_TEST_INT", 7); got != 7 {
		t.Errorf("Invalid value must fall back, got %d", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("ARI_TEST_BOOL", "true")
	if !GetEnvBool("ARI_TEST_BOOL", false) {
		t.Error("Expected true")
	}
	t.Setenv("ARI_TEST_BOOL", "garbage")
	if !GetEnvBool("ARI_TEST_BOOL", true) {
		t.Error("Invalid value must fall back")
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("ARI_TEST_FLOAT", "1.5")
	if got := GetEnvFloat("ARI_TEST_FLOAT", 2.0); got != 1.5 {
		t.Errorf("Expected 1.5, got %f", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("ARI_TEST_DUR", "30s")
	if got := GetEnvDuration("ARI_TEST_DUR", time.Second); got != 30*time.Second {
		t.Errorf("Expected 30s, got %v", got)
	}

	// Plain numbers are milliseconds.
	t.Setenv("ARI_TEST_DUR", "1500")
	if got := GetEnvDuration("ARI_TEST_DUR", time.Second); got != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s, got %v", got)
	}

	t.Setenv("ARI_TEST_DUR", "soon")
	if got := GetEnvDuration("ARI_TEST_DUR", time.Second); got != time.Second {
		t.Errorf("Invalid value must fall back, got %v", got)
	}
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	if got := GetLogLevel(); got != logrus.DebugLevel {
		t.Errorf("Expected debug, got %v", got)
	}
	t.Setenv("LOG_LEVEL", "")
	if got := GetLogLevel(); got != logrus.InfoLevel {
		t.Errorf("Default must be info, got %v", got)
	}
}
