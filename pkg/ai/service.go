package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"assessment-generator/pkg/logger"
)

// ServiceCompleter talks to the internal ai-service chat endpoint
// (POST /v1/chat, {agent, input} -> {agent, output}).
type ServiceCompleter struct {
	client  *http.Client
	baseURL string
	log     *logger.Logger
}

func NewServiceCompleter(httpClient *http.Client, baseURL string, log *logger.Logger) *ServiceCompleter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ServiceCompleter{client: httpClient, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

type chatRequest struct {
	Agent string `json:"agent"`
	Input string `json:"input"`
}

type chatResponse struct {
	Agent  string `json:"agent"`
	Output string `json:"output"`
}

func (s *ServiceCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	input := user
	if system != "" {
		input = system + "\n\n" + user
	}
	b, err := json.Marshal(chatRequest{Agent: "auto", Input: input})
	if err != nil {
		return "", err
	}

	s.log.Debug("ai-service request", "url", s.baseURL+"/v1/chat", "bytes", len(b))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/chat", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	s.log.Debug("ai-service response", "status", resp.StatusCode, "bytes", len(rb))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai-service returned non-200 status: %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(rb, &chatResp); err != nil {
		return "", fmt.Errorf("error decoding ai-service response: %w", err)
	}
	return chatResp.Output, nil
}
