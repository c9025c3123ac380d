package steps

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// StepTypeHTTP — тип HTTP шага.
	StepTypeHTTP = "http"

	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 1024 * 1024 // 1 MB
)

// Ключи конфигурации HTTP шага.
const (
	configMethod      = "method"
	configURL         = "url"
	configHeaders     = "headers"
	configValidateSSL = "validate_ssl"
	configTimeoutSec  = "timeout_sec"
)

// ErrHTTPResponse — ответ сервиса не содержит числового результата.
var ErrHTTPResponse = errors.New("invalid http step response")

// HTTPStep — шаг, делегирующий вычисление внешнему сервису.
//
// Отправляет текущий результат и ожидает новый в ответе.
//
// Конфигурация:
//
//	{
//	    "url": "http://scorer:8080/apply",
//	    "method": "POST",
//	    "headers": {"Authorization": "Bearer xxx"},
//	    "validate_ssl": true,
//	    "timeout_sec": 10
//	}
//
// Тело запроса:
//
//	{"step_id": "score", "value": 41}
//
// Ожидаемый ответ (application/json):
//
//	{"value": 42}
type HTTPStep struct {
	timeout time.Duration
}

// NewHTTPStep создаёт новый HTTPStep.
func NewHTTPStep() *HTTPStep {
	return &HTTPStep{timeout: defaultHTTPTimeout}
}

// Type возвращает тип шага.
func (s *HTTPStep) Type() string {
	return StepTypeHTTP
}

// httpRequest — тело запроса к сервису.
type httpRequest struct {
	StepID string  `json:"step_id"`
	Value  float64 `json:"value"`
}

// httpResponse — ожидаемое тело ответа.
type httpResponse struct {
	Value *float64 `json:"value"`
}

// Execute выполняет HTTP запрос.
func (s *HTTPStep) Execute(ctx context.Context, prev float64, d Descriptor) (float64, error) {
	cfg, err := s.parseConfig(d.Config)
	if err != nil {
		return prev, err
	}

	body, err := json.Marshal(httpRequest{StepID: d.ID, Value: prev})
	if err != nil {
		return prev, fmt.Errorf("serialize body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return prev, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.buildClient(cfg).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return prev, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
		}
		return prev, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	return s.parseResponse(resp, prev)
}

// ValidateConfig реализует Validator.
func (s *HTTPStep) ValidateConfig(config map[string]any) error {
	_, err := s.parseConfig(config)
	return err
}

// httpConfig — распарсенная конфигурация HTTP шага.
type httpConfig struct {
	Method      string
	URL         string
	Headers     map[string]string
	ValidateSSL bool
	Timeout     time.Duration
}

func (s *HTTPStep) parseConfig(config map[string]any) (*httpConfig, error) {
	cfg := &httpConfig{
		Method:      strings.ToUpper(GetConfigString(config, configMethod)),
		URL:         GetConfigString(config, configURL),
		Headers:     GetConfigMapString(config, configHeaders),
		ValidateSSL: true,
		Timeout:     s.timeout,
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: %s: url is required", ErrInvalidConfig, StepTypeHTTP)
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if v, ok := config[configValidateSSL].(bool); ok {
		cfg.ValidateSSL = v
	}
	if sec := GetConfigInt(config, configTimeoutSec); sec > 0 {
		cfg.Timeout = time.Duration(sec) * time.Second
	}

	return cfg, nil
}

func (s *HTTPStep) buildClient(cfg *httpConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !cfg.ValidateSSL,
			},
		},
	}
}

// parseResponse извлекает новый результат из ответа.
func (s *HTTPStep) parseResponse(resp *http.Response, prev float64) (float64, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return prev, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return prev, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(bodyBytes),
		}
	}

	var out httpResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return prev, fmt.Errorf("%w: %v", ErrHTTPResponse, err)
	}
	if out.Value == nil {
		return prev, fmt.Errorf("%w: missing value", ErrHTTPResponse)
	}

	return *out.Value, nil
}

// HTTPError — ответ сервиса с HTTP статусом >= 400.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// IsHTTPError проверяет, является ли ошибка HTTP ошибкой.
func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}
