package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/menta2k/photo-translator/internal/httpc"
)

// Service statuses reported by the job status endpoint
const (
	StatusWaiting    = "waiting"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
	StatusError      = "error"
)

// Fetch result codes
const (
	FetchSuccess = "3"
	FetchError   = "4"
)

// Code is a status field the service sends either as a string or a number
type Code string

func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("status is neither string nor number: %s", data)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*c = Code(strconv.FormatInt(i, 10))
		return nil
	}
	*c = Code(n.String())
	return nil
}

// StatusReply is the body of GET /job/{ukey}/status
type StatusReply struct {
	Status  Code   `json:"status"`
	Message string `json:"message"`
}

// FetchReply is the body of POST /job/{ukey}/get
type FetchReply struct {
	Status  Code   `json:"status"`
	Message string `json:"message"`
}

// Service is the remote job based translation API
type Service interface {
	GetKey(ctx context.Context, pair LanguagePair) (string, error)
	AddJob(ctx context.Context, pair LanguagePair, key, text string) (Code, error)
	Status(ctx context.Context, pair LanguagePair, key string) (StatusReply, error)
	Fetch(ctx context.Context, pair LanguagePair, key string) (FetchReply, error)
}

// HTTPService talks to the service over HTTP/JSON
type HTTPService struct {
	httpClient *http.Client
}

// NewHTTPService creates a service client. A nil client uses httpc.Client.
func NewHTTPService(c *http.Client) *HTTPService {
	if c == nil {
		c = httpc.Client
	}
	return &HTTPService{httpClient: c}
}

type keyRequest struct {
	MKey string `json:"mkey"`
}

type keyReply struct {
	UKey string `json:"ukey"`
}

type addRequest struct {
	MKey  string `json:"mkey"`
	UKey  string `json:"ukey"`
	Text  string `json:"text"`
	Model string `json:"model"`
}

type addReply struct {
	Status Code `json:"status"`
}

// GetKey acquires a user key for one job
func (s *HTTPService) GetKey(ctx context.Context, pair LanguagePair) (string, error) {
	var reply keyReply
	if err := s.do(ctx, http.MethodPost, pair, "/key/get", keyRequest{MKey: pair.MasterKey}, &reply); err != nil {
		return "", err
	}
	if reply.UKey == "" {
		return "", fmt.Errorf("%w: empty user key", ErrTransport)
	}
	return reply.UKey, nil
}

// AddJob creates the translation job
func (s *HTTPService) AddJob(ctx context.Context, pair LanguagePair, key, text string) (Code, error) {
	var reply addReply
	req := addRequest{MKey: pair.MasterKey, UKey: key, Text: text, Model: pair.Model}
	if err := s.do(ctx, http.MethodPost, pair, "/job/add", req, &reply); err != nil {
		return "", err
	}
	return reply.Status, nil
}

// Status polls the job status
func (s *HTTPService) Status(ctx context.Context, pair LanguagePair, key string) (StatusReply, error) {
	var reply StatusReply
	err := s.do(ctx, http.MethodGet, pair, "/job/"+key+"/status", nil, &reply)
	return reply, err
}

// Fetch retrieves the translation of a processed job
func (s *HTTPService) Fetch(ctx context.Context, pair LanguagePair, key string) (FetchReply, error) {
	var reply FetchReply
	err := s.do(ctx, http.MethodPost, pair, "/job/"+key+"/get", keyRequest{MKey: pair.MasterKey}, &reply)
	return reply, err
}

func (s *HTTPService) do(ctx context.Context, method string, pair LanguagePair, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %v", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, pair.BaseURL()+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", ErrTransport, err)
	}
	return nil
}
