package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	uid := uuid.New()
	job, err := NewJob(QueueEmails, JobTypeEmail, EmailPayload{
		EmailType:      "level_up",
		UserID:         &uid,
		RecipientEmail: "a@example.com",
		Subject:        "Level 3",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, QueueEmails, job.Queue)
	assert.Equal(t, 0, job.Attempt)

	var p EmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, "a@example.com", p.RecipientEmail)
	require.NotNil(t, p.UserID)
	assert.Equal(t, uid, *p.UserID)
	assert.Nil(t, p.EventID)
}

func TestNewJob_BadPayload(t *testing.T) {
	_, err := NewJob(QueueEmails, JobTypeEmail, make(chan int))
	assert.Error(t, err)
}

func TestJob_Exhausted(t *testing.T) {
	job := &Job{}
	for i := 0; i < MaxRetries-1; i++ {
		assert.False(t, job.Exhausted(), "attempt %d", job.Attempt)
		job.Attempt++
	}
	assert.True(t, job.Exhausted())
}

func TestDecode(t *testing.T) {
	job, err := NewJob(QueueEmails, JobTypeEmail, EmailPayload{RecipientEmail: "a@example.com"})
	require.NoError(t, err)
	job.LastError = "smtp: 451"
	raw, err := json.Marshal(job)
	require.NoError(t, err)

	got, err := decode(string(raw))
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "smtp: 451", got.LastError)

	_, err = decode("{not json")
	assert.Error(t, err)
}
