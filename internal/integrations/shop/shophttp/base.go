package shophttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/StoreFront/internal/integrations/shop"
	"github.com/pkg/errors"
)

// Observer получает исход каждого запроса (метрики).
type Observer func(backend, outcome string)

type base struct {
	name    string
	baseURL string
	httpc   *http.Client
	observe Observer
}

func newBase(name, baseURL, fallbackURL string, timeout time.Duration, obs Observer) base {
	if baseURL == "" {
		baseURL = fallbackURL
	}
	if obs == nil {
		obs = func(string, string) {}
	}
	return base{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		observe: obs,
	}
}

// HTTPError: не-2xx ответ бэкенда (кроме 401).
type HTTPError struct {
	Backend string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s http %d: %s", e.Backend, e.Status, e.Message)
	}
	return fmt.Sprintf("%s http %d", e.Backend, e.Status)
}

// do выполняет запрос и возвращает тело 2xx-ответа.
func (b base) do(ctx context.Context, method, path, token string, body any) ([]byte, error) {
	u, err := url.Parse(b.baseURL + path)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode body")
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.httpc.Do(req)
	if err != nil {
		b.observe(b.name, "transport_error")
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		b.observe(b.name, "transport_error")
		return nil, errors.Wrap(err, "read body")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		b.observe(b.name, "unauthorized")
		return nil, shop.ErrUnauthorized
	}
	if resp.StatusCode/100 != 2 {
		b.observe(b.name, "http_"+strconv.Itoa(resp.StatusCode))
		return nil, &HTTPError{Backend: b.name, Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	b.observe(b.name, "ok")
	return raw, nil
}

// errorMessage достаёт {"error": "..."} или {"message": "..."} из тела ошибки.
func errorMessage(raw []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &e) != nil {
		return ""
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// flexID принимает и строку, и число: бэкенды отдают id как Long.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrap(err, "id is neither string nor number")
	}
	*f = flexID(n.String())
	return nil
}

// envelope: user-service заворачивает ответы в {"success","message","data"}.
func unwrapEnvelope(raw []byte) []byte {
	var env struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Success != nil && len(env.Data) > 0 {
		return env.Data
	}
	return raw
}
