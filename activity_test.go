package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
)

func TestDefaultsAreUsable(t *testing.T) {
	assert.NotNil(t, auth.DefaultLogger())
	assert.NoError(t, auth.NoopActivitySink().Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventLogout,
	}))
}

func TestRecordActivityIsBestEffort(t *testing.T) {
	logs := &logRecorder{}
	sink := auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
		return errors.New("sink down")
	})

	auth.RecordActivity(context.Background(), sink, logs, auth.ActivityEvent{
		EventType: auth.ActivityEventLogout,
		UserID:    "user-1",
	})

	warns := logs.Warns()
	if assert.Len(t, warns, 1) {
		assert.Contains(t, warns[0], "sink down")
	}
}
