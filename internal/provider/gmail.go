package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emersion/go-message/mail"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mixelka/massmailer/pkg/models"
)

const defaultGmailBaseURL = "https://gmail.googleapis.com"

// Gmail sends through the Gmail REST API. Stored credentials are wrapped in
// an oauth2 token source per call, which refreshes expired access tokens
// transparently in use; there is no explicit refresh step on this path.
type Gmail struct {
	baseURL    string
	httpClient *http.Client
}

// GmailConfig for the Gmail sender
type GmailConfig struct {
	BaseURL string        // overridden in tests, defaults to the public API
	Timeout time.Duration // per-request timeout, defaults to 30s
}

// NewGmail creates a new Gmail sender
func NewGmail(cfg GmailConfig) *Gmail {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGmailBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Gmail{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier
func (g *Gmail) Name() string { return models.ProviderGmail }

// ScoreMode returns ScoreReplace: a batch tally replaces the prior score
func (g *Gmail) ScoreMode() ScoreMode { return ScoreReplace }

// Prepare is a no-op for Gmail: the token source refreshes itself when used
func (g *Gmail) Prepare(ctx context.Context, cred *models.Credential) (bool, error) {
	return false, nil
}

// Send builds a MIME message, base64url-encodes it and submits it via the
// mail-send endpoint. The returned id can be polled for delivery status.
func (g *Gmail) Send(ctx context.Context, cred *models.Credential, msg Message) (string, error) {
	raw, err := buildMIME(msg)
	if err != nil {
		return "", fmt.Errorf("failed to build message: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"raw": base64.URLEncoding.EncodeToString(raw),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/gmail/v1/users/me/messages/send", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client(ctx, cred).Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("send rejected: %s (status %d)", body, resp.StatusCode)
	}

	var sent struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &sent); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if sent.ID == "" {
		return "", fmt.Errorf("no message id in response")
	}
	return sent.ID, nil
}

// MessageStatus fetches the message's label set and classifies it. SENT wins
// over INBOX, INBOX over SPAM. An empty state means no known label yet.
func (g *Gmail) MessageStatus(ctx context.Context, cred *models.Credential, messageID string) (models.DeliveryState, error) {
	url := fmt.Sprintf("%s/gmail/v1/users/me/messages/%s?format=minimal", g.baseURL, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client(ctx, cred).Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("message fetch rejected: %s (status %d)", body, resp.StatusCode)
	}

	var message struct {
		LabelIDs []string `json:"labelIds"`
	}
	if err := json.Unmarshal(body, &message); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	labels := make(map[string]bool, len(message.LabelIDs))
	for _, l := range message.LabelIDs {
		labels[l] = true
	}

	switch {
	case labels["SENT"]:
		return models.StateDelivered, nil
	case labels["INBOX"]:
		return models.StateInboxed, nil
	case labels["SPAM"]:
		return models.StateSpammed, nil
	}
	return "", nil
}

// client wraps the base HTTP client with a self-refreshing bearer token
func (g *Gmail) client(ctx context.Context, cred *models.Credential) *http.Client {
	endpoint := google.Endpoint
	if cred.TokenURI != "" {
		endpoint.TokenURL = cred.TokenURI
	}

	conf := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       cred.ScopeList(),
	}
	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.TokenExpiry,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	return conf.Client(ctx, token)
}

// buildMIME renders a plain-text message with To/From/Subject and optional
// Cc/Bcc headers
func buildMIME(msg Message) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.SetAddressList("From", []*mail.Address{{Address: msg.From}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	if len(msg.CC) > 0 {
		h.SetAddressList("Cc", toAddressList(msg.CC))
	}
	if len(msg.BCC) > 0 {
		h.SetAddressList("Bcc", toAddressList(msg.BCC))
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toAddressList(addrs []string) []*mail.Address {
	list := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, &mail.Address{Address: a})
	}
	return list
}
