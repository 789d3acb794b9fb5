package provider_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/massmailer/internal/provider"
	"github.com/mixelka/massmailer/pkg/models"
)

func newOutlook(cfg provider.OutlookConfig) *provider.Outlook {
	return provider.NewOutlook(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func outlookCredential() *models.Credential {
	return &models.Credential{
		Email:        "bob@outlook.com",
		Provider:     models.ProviderOutlook,
		Status:       models.StatusEnabled,
		AccessToken:  "stale-access",
		RefreshToken: "refresh-1",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Scopes:       "https://graph.microsoft.com/Mail.Send,https://graph.microsoft.com/User.Read",
	}
}

func TestOutlookPrepare(t *testing.T) {
	t.Parallel()

	t.Run("exchanges the refresh token before the batch", func(t *testing.T) {
		t.Parallel()

		var gotGrant, gotRefresh, gotScope string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			gotGrant = r.PostForm.Get("grant_type")
			gotRefresh = r.PostForm.Get("refresh_token")
			gotScope = r.PostForm.Get("scope")

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"access_token": "fresh-access",
				"refresh_token": "refresh-2",
				"expires_in": 3600
			}`))
		}))
		defer srv.Close()

		outlook := newOutlook(provider.OutlookConfig{TokenURL: srv.URL})
		cred := outlookCredential()

		rotated, err := outlook.Prepare(context.Background(), cred)
		require.NoError(t, err)
		assert.True(t, rotated)

		assert.Equal(t, "refresh_token", gotGrant)
		assert.Equal(t, "refresh-1", gotRefresh)
		// Baseline scopes come first, then whatever the mailbox granted
		assert.Contains(t, gotScope, "openid profile offline_access")
		assert.Contains(t, gotScope, "https://graph.microsoft.com/Mail.Send")
		assert.Contains(t, gotScope, "https://graph.microsoft.com/User.Read")

		assert.Equal(t, "fresh-access", cred.AccessToken)
		assert.Equal(t, "refresh-2", cred.RefreshToken)
		assert.WithinDuration(t, time.Now().Add(time.Hour), cred.TokenExpiry, time.Minute)
	})

	t.Run("keeps the old refresh token when none is returned", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"access_token": "fresh-access"}`))
		}))
		defer srv.Close()

		outlook := newOutlook(provider.OutlookConfig{TokenURL: srv.URL})
		cred := outlookCredential()

		rotated, err := outlook.Prepare(context.Background(), cred)
		require.NoError(t, err)
		assert.True(t, rotated)
		assert.Equal(t, "refresh-1", cred.RefreshToken)
	})

	t.Run("rejected exchange", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": "invalid_grant"}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		outlook := newOutlook(provider.OutlookConfig{TokenURL: srv.URL})
		_, err := outlook.Prepare(context.Background(), outlookCredential())
		require.ErrorIs(t, err, provider.ErrTokenRefresh)
	})

	t.Run("response without access token", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		outlook := newOutlook(provider.OutlookConfig{TokenURL: srv.URL})
		_, err := outlook.Prepare(context.Background(), outlookCredential())
		require.ErrorIs(t, err, provider.ErrTokenRefresh)
	})
}

func TestOutlookSend(t *testing.T) {
	t.Parallel()

	t.Run("posts the message and reports no id", func(t *testing.T) {
		t.Parallel()

		var gotPath, gotAuth string
		var gotPayload map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		outlook := newOutlook(provider.OutlookConfig{BaseURL: srv.URL})
		msg := provider.Message{
			From:    "bob@outlook.com",
			To:      "to@example.com",
			CC:      []string{"cc@example.com"},
			Subject: "Quarterly update",
			Body:    "Numbers are up.",
		}

		id, err := outlook.Send(context.Background(), outlookCredential(), msg)
		require.NoError(t, err)
		assert.Empty(t, id, "graph returns no trackable message id")

		assert.Equal(t, "/v1.0/me/sendMail", gotPath)
		assert.Equal(t, "Bearer stale-access", gotAuth)

		message, ok := gotPayload["message"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Quarterly update", message["subject"])

		body, ok := message["body"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "text", body["contentType"])
		assert.Equal(t, "Numbers are up.", body["content"])

		to, ok := message["toRecipients"].([]any)
		require.True(t, ok)
		require.Len(t, to, 1)
		cc, ok := message["ccRecipients"].([]any)
		require.True(t, ok)
		require.Len(t, cc, 1)
		_, hasBCC := message["bccRecipients"]
		assert.False(t, hasBCC)
	})

	// Graph gives no delivery signal, so a completed exchange is treated as
	// delivered even when the API said no. The ledger cannot distinguish a
	// rejected Outlook send from a delivered one.
	t.Run("non-2xx response still reports success", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"code": "ErrorSendAsDenied"}}`, http.StatusForbidden)
		}))
		defer srv.Close()

		outlook := newOutlook(provider.OutlookConfig{BaseURL: srv.URL})
		id, err := outlook.Send(context.Background(), outlookCredential(), provider.Message{
			To: "to@example.com", Subject: "s", Body: "b",
		})
		require.NoError(t, err)
		assert.Empty(t, id)
	})
}
