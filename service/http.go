package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"showtimedb-cli/logger"
)

// requester performs one JSON request per call. There are no retries: every
// failure is reported to the caller as it happened.
type requester struct {
	httpClient *http.Client
	userAgent  string
	log        *slog.Logger
}

// messageFunc extracts a human-readable message from a non-2xx body.
type messageFunc func(body []byte) string

func (r requester) do(ctx context.Context, method, endpoint string, header http.Header, in, out any, message messageFunc) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := logger.NewRequestID()
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	log := r.log.With("method", method, "endpoint", endpoint, "request_id", requestID)
	start := time.Now()

	res, err := r.httpClient.Do(req)
	if err != nil {
		log.Warn("request failed", "error", err, "duration", time.Since(start))
		return &NetworkError{Op: method + " " + endpoint, Err: err}
	}
	defer res.Body.Close()
	log = log.With("status", res.StatusCode, "duration", time.Since(start))

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 8<<10))
		msg := ""
		if message != nil {
			msg = strings.TrimSpace(message(snippet))
		}
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		log.Warn("request rejected", "message", msg)
		return &ServiceError{Status: res.StatusCode, Message: msg, Endpoint: endpoint}
	}
	log.Debug("request completed")

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		log.Warn("decode response", "error", err)
		return &NetworkError{Op: "decode " + endpoint, Err: err}
	}
	return nil
}

func bearer(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
