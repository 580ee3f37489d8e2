package mailer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_NotConfigured(t *testing.T) {
	s := NewSMTP(SMTPConfig{})
	assert.ErrorIs(t, s.Send("a@example.com", "hi", "<p>x</p>"), ErrNotConfigured)
}

func TestMessage_Headers(t *testing.T) {
	s := NewSMTP(SMTPConfig{From: "noreply@example.com", FromName: "Hearth"})
	m := s.Message("a@example.com", "Level up", LevelUpHTML("Ann", 3, 160))
	assert.Equal(t, []string{"a@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Level up"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "level 3")
}

func TestTemplates_Escape(t *testing.T) {
	assert.Contains(t, WelcomeHTML("<script>", "Club"), "&lt;script&gt;")
	assert.NotContains(t, EventReminderHTML("Meetup", "10:00", ""), "Where")
	assert.Contains(t, EventReminderHTML("Meetup", "10:00", "Room 1"), "Room 1")
}
