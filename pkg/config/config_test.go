package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)

	assert.Equal(t, 30, cfg.Assessment.PreWindowMinutes)
	assert.Equal(t, 2, cfg.Assessment.GraceOffsetHours)
	assert.Equal(t, 5, cfg.Assessment.LateToleranceMinutes)
	assert.Equal(t, "16:00", cfg.Assessment.WeekdayStart)
	assert.Equal(t, "15:00", cfg.Assessment.SaturdayEnd)

	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Sweeper.OpenerInterval)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.ExpiryInterval)
	assert.Equal(t, 5*time.Minute, cfg.Sweeper.LockTTL)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "student-notifications", cfg.Kafka.Topic)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ASSESSMENT_PRE_WINDOW_MINUTES", "45")
	t.Setenv("SWEEPER_OPENER_INTERVAL", "30m")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 45, cfg.Assessment.PreWindowMinutes)
	assert.Equal(t, 30*time.Minute, cfg.Sweeper.OpenerInterval)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsInvalidAssessmentOffsets(t *testing.T) {
	t.Setenv("ASSESSMENT_GRACE_PERIOD_HOURS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASSESSMENT_GRACE_PERIOD_HOURS")
}

func TestLoadRejectsMalformedScheduleTimes(t *testing.T) {
	t.Setenv("SCHEDULE_WEEKDAY_START", "4pm")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEDULE_WEEKDAY_START")
}

func TestLoadRejectsOversizedSweepInterval(t *testing.T) {
	t.Setenv("SWEEPER_EXPIRY_INTERVAL", "24h")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SWEEPER_EXPIRY_INTERVAL")
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("not-a-duration", time.Minute))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Minute))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , b ,"))
}
