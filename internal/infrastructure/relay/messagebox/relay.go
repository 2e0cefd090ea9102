package messageboxrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
)

const identityHeader = "X-Identity-Key"

type sendMessageRequest struct {
	Recipient string `json:"recipient"`
	Box       string `json:"box"`
	Body      []byte `json:"body"`
}

type message struct {
	Id        string `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Box       string `json:"box"`
	Body      []byte `json:"body"`
	CreatedAt int64  `json:"createdAt"`
}

type listMessagesResponse struct {
	Messages []message `json:"messages"`
}

type acknowledgeRequest struct {
	Ids []string `json:"ids"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// relay talks to a message box daemon over HTTP.
type relay struct {
	url      string
	identity string
	client   *http.Client
}

func NewRelay(serverURL, identity string) (ports.Relay, error) {
	if len(serverURL) <= 0 {
		return nil, fmt.Errorf("missing message box url")
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid message box url: %s", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid message box url scheme %q", u.Scheme)
	}
	if len(identity) <= 0 {
		return nil, fmt.Errorf("missing identity key")
	}

	return &relay{
		url:      strings.TrimSuffix(u.String(), "/"),
		identity: identity,
		client:   &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (r *relay) SendMessage(
	ctx context.Context, recipient, box string, body []byte,
) error {
	req := sendMessageRequest{recipient, box, body}
	return r.do(ctx, http.MethodPost, "/v1/messages", req, nil)
}

func (r *relay) ListMessages(ctx context.Context, box string) ([]ports.Message, error) {
	path := fmt.Sprintf("/v1/messages?box=%s", url.QueryEscape(box))

	var resp listMessagesResponse
	if err := r.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	messages := make([]ports.Message, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		messages = append(messages, ports.Message{
			Id:        msg.Id,
			Sender:    msg.Sender,
			Recipient: msg.Recipient,
			Box:       msg.Box,
			Body:      msg.Body,
			CreatedAt: time.UnixMilli(msg.CreatedAt),
		})
	}
	return messages, nil
}

func (r *relay) AcknowledgeMessages(ctx context.Context, ids []string) error {
	if len(ids) <= 0 {
		return nil
	}
	return r.do(ctx, http.MethodPost, "/v1/messages/ack", acknowledgeRequest{ids}, nil)
}

func (r *relay) do(
	ctx context.Context, method, path string, body, result interface{},
) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.url+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set(identityHeader, r.identity)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("message box request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		// nolint:all
		json.NewDecoder(resp.Body).Decode(&errResp)
		if len(errResp.Error) > 0 {
			return fmt.Errorf("message box error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("message box error (%d)", resp.StatusCode)
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("invalid message box response: %s", err)
	}
	return nil
}
