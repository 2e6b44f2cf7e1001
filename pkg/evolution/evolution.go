package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
)

const maxResponseSizeBytes = 1 << 20

type Config struct {
	URL          string        `envconfig:"URL" split_words:"true" required:"true"`
	APIKey       string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Instance     string        `envconfig:"INSTANCE" split_words:"true" required:"true"`
	MediaBaseURL string        `envconfig:"MEDIA_BASE_URL" split_words:"true"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

// Client talks to an Evolution-style WhatsApp gateway. It is the outbound
// dispatcher implementation and the pairing-code source for reconnects.
type Client struct {
	baseURL      string
	apiKey       string
	instance     string
	mediaBaseURL string
	httpClient   *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("evolution url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid evolution url: %w", err)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("evolution api key is required")
	}
	instance := strings.TrimSpace(cfg.Instance)
	if instance == "" {
		return nil, errors.New("evolution instance is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		instance:     instance,
		mediaBaseURL: strings.TrimRight(strings.TrimSpace(cfg.MediaBaseURL), "/"),
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

var _ contractx.Dispatcher = (*Client)(nil)

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendMediaRequest struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	FileName  string `json:"fileName"`
	Caption   string `json:"caption,omitempty"`
}

func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	if strings.TrimSpace(chatID) == "" {
		return errors.New("chat id is required")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("text is required")
	}

	path := fmt.Sprintf("/message/sendText/%s", url.PathEscape(c.instance))
	return c.post(ctx, path, sendTextRequest{Number: chatID, Text: text}, nil)
}

func (c *Client) SendAttachment(ctx context.Context, chatID, fileKey, fileName, caption string) error {
	if strings.TrimSpace(chatID) == "" {
		return errors.New("chat id is required")
	}
	if strings.TrimSpace(fileKey) == "" {
		return errors.New("file key is required")
	}

	media := fileKey
	if c.mediaBaseURL != "" {
		media = c.mediaBaseURL + "/" + strings.TrimLeft(fileKey, "/")
	}

	path := fmt.Sprintf("/message/sendMedia/%s", url.PathEscape(c.instance))
	return c.post(ctx, path, sendMediaRequest{
		Number:    chatID,
		MediaType: "document",
		Media:     media,
		FileName:  fileName,
		Caption:   caption,
	}, nil)
}

type connectResponse struct {
	PairingCode string `json:"pairingCode"`
	Code        string `json:"code"`
}

// IssuePairingCode asks the gateway for a fresh one-time pairing code so an
// operator can relink the channel account.
func (c *Client) IssuePairingCode(ctx context.Context, externalAccountID string, channel contractx.ChannelType) (string, error) {
	if channel != contractx.ChannelWhatsApp {
		return "", fmt.Errorf("channel %s does not support pairing codes", channel)
	}

	path := fmt.Sprintf("/instance/connect/%s", url.PathEscape(c.instance))
	if number := strings.TrimSpace(externalAccountID); number != "" {
		path += "?number=" + url.QueryEscape(number)
	}

	var resp connectResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return "", err
	}

	code := strings.TrimSpace(resp.PairingCode)
	if code == "" {
		code = strings.TrimSpace(resp.Code)
	}
	if code == "" {
		return "", errors.New("gateway returned no pairing code")
	}
	return code, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal evolution request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build evolution request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute evolution request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read evolution response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("evolution http status=%d body=%s", resp.StatusCode, string(raw))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode evolution response: %w", err)
		}
	}
	return nil
}
