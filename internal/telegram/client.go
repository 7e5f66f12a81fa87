// Package telegram is a minimal Bot API client for publishing to channels.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sony/gobreaker"

	"github.com/i474232898/telegram-weather-publisher/internal/common"
)

const (
	DefaultBaseURL = "https://api.telegram.org"

	// Bot API caption limit, in characters.
	maxCaptionLen = 1024
)

var (
	ErrTokenMissing = errors.New("telegram bot token is not configured")
	errCircuitOpen  = errors.New("circuit breaker open")
)

// APIError is a Bot API response with ok=false.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// Client sends messages through the Telegram Bot API. Every call is a single
// attempt; a circuit breaker stops hammering the API while it is failing.
type Client struct {
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// New builds a client for the given bot token.
func New(httpClient *http.Client, baseURL, token string) (*Client, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/bot" + token,
		client:  httpClient,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "telegram",
			MaxRequests: 1,
			Interval:    1 * time.Minute,
			Timeout:     1 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}, nil
}

// SendVideo uploads the video at videoPath with a caption and returns the message id.
func (c *Client) SendVideo(ctx context.Context, chatID, caption, videoPath string) (string, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		return "", fmt.Errorf("video file not found: %s: %w", videoPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("video path is a directory: %s", videoPath)
	}

	mtype, err := mimetype.DetectFile(videoPath)
	if err != nil {
		return "", fmt.Errorf("detect media type of %s: %w", videoPath, err)
	}
	if !strings.HasPrefix(mtype.String(), "video/") {
		return "", fmt.Errorf("unsupported media type %s for %s", mtype.String(), videoPath)
	}

	video, err := os.ReadFile(videoPath)
	if err != nil {
		return "", fmt.Errorf("read video: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", chatID); err != nil {
		return "", err
	}
	if err := w.WriteField("caption", common.Truncate(caption, maxCaptionLen)); err != nil {
		return "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename=%q`, filepath.Base(videoPath)))
	h.Set("Content-Type", mtype.String())
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(video); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	messageID, err := c.call(ctx, "sendVideo", w.FormDataContentType(), body.Bytes())
	if err != nil {
		return "", err
	}
	log.Printf("INFO: telegram message sent chat_id=%s message_id=%s", chatID, messageID)
	return messageID, nil
}

// SendMessage posts a plain text message and returns the message id.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)

	messageID, err := c.call(ctx, "sendMessage", "application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return "", err
	}
	log.Printf("INFO: telegram message sent chat_id=%s message_id=%s", chatID, messageID)
	return messageID, nil
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (c *Client) call(ctx context.Context, method, contentType string, body []byte) (string, error) {
	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}

		var payload apiResponse
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("telegram %s: status %d: decode response: %w", method, resp.StatusCode, err)
		}
		// Only server-side failures count against the breaker.
		if resp.StatusCode >= 500 {
			return nil, &APIError{Code: resp.StatusCode, Description: payload.Description}
		}
		return &payload, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("telegram %s: %w: %v", method, errCircuitOpen, err)
		}
		return "", fmt.Errorf("telegram %s: %w", method, err)
	}

	payload := result.(*apiResponse)
	if !payload.OK {
		return "", &APIError{Code: payload.ErrorCode, Description: payload.Description}
	}
	return strconv.FormatInt(payload.Result.MessageID, 10), nil
}
