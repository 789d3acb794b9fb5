package scheduler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/massmailer/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJob(sender string) *models.SendJob {
	return &models.SendJob{
		SenderEmail: sender,
		Provider:    models.ProviderGmail,
		Subject:     "hi",
		Body:        "body",
		Recipients:  []string{"to@example.com"},
	}
}

func TestSchedule(t *testing.T) {
	t.Parallel()

	s := New(func(ctx context.Context, job *models.SendJob) {}, time.Second, discardLogger())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })

	id := s.Schedule(base.Add(time.Hour), testJob("alice@gmail.com"))
	assert.True(t, strings.HasPrefix(id, "email_alice@gmail.com_"), "unexpected job id %q", id)
	assert.Equal(t, 1, s.Pending())

	s.Schedule(base.Add(2*time.Hour), testJob("bob@gmail.com"))
	assert.Equal(t, 2, s.Pending())
}

func TestFireDue(t *testing.T) {
	t.Parallel()

	t.Run("due job fires exactly once", func(t *testing.T) {
		t.Parallel()

		fired := make(chan *models.SendJob, 1)
		s := New(func(ctx context.Context, job *models.SendJob) {
			fired <- job
		}, time.Second, discardLogger())

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		s.SetClock(func() time.Time { return now })
		s.Schedule(now.Add(time.Minute), testJob("alice@gmail.com"))

		// Not due yet
		s.fireDue()
		select {
		case <-fired:
			t.Fatal("job fired before its time")
		case <-time.After(50 * time.Millisecond):
		}
		assert.Equal(t, 1, s.Pending())

		// Advance past the fire time
		now = now.Add(2 * time.Minute)
		s.fireDue()

		select {
		case job := <-fired:
			assert.Equal(t, "alice@gmail.com", job.SenderEmail)
		case <-time.After(time.Second):
			t.Fatal("job did not fire")
		}
		assert.Equal(t, 0, s.Pending())

		// A fired job is gone
		s.fireDue()
		select {
		case <-fired:
			t.Fatal("job fired twice")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("fire time exactly now counts as due", func(t *testing.T) {
		t.Parallel()

		fired := make(chan struct{}, 1)
		s := New(func(ctx context.Context, job *models.SendJob) {
			fired <- struct{}{}
		}, time.Second, discardLogger())

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		s.SetClock(func() time.Time { return now })
		s.Schedule(now, testJob("alice@gmail.com"))

		s.fireDue()
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("job due exactly now did not fire")
		}
	})

	t.Run("only due jobs drain", func(t *testing.T) {
		t.Parallel()

		fired := make(chan *models.SendJob, 2)
		s := New(func(ctx context.Context, job *models.SendJob) {
			fired <- job
		}, time.Second, discardLogger())

		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		s.SetClock(func() time.Time { return now })
		s.Schedule(now.Add(-time.Minute), testJob("due@gmail.com"))
		s.Schedule(now.Add(time.Hour), testJob("later@gmail.com"))

		s.fireDue()

		select {
		case job := <-fired:
			assert.Equal(t, "due@gmail.com", job.SenderEmail)
		case <-time.After(time.Second):
			t.Fatal("due job did not fire")
		}
		assert.Equal(t, 1, s.Pending())
	})
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 1)
	s := New(func(ctx context.Context, job *models.SendJob) {
		fired <- struct{}{}
	}, time.Millisecond, discardLogger())

	s.Schedule(time.Now().Add(-time.Second), testJob("alice@gmail.com"))
	s.Start()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("drain loop never fired the due job")
	}

	s.Stop()
	require.Equal(t, 0, s.Pending())
}
