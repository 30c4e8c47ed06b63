package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/iudanet/mapkeeper/pkg/api"
)

//go:generate moq -out client_mock.go . ClientAPI

// ClientAPI методы сервера, которые использует клиент
type ClientAPI interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
	CreateChangeset(ctx context.Context, accessToken string, req api.CreateChangesetRequest) (*api.Changeset, error)
	GetChangeset(ctx context.Context, id int64) (*api.Changeset, error)
	CloseChangeset(ctx context.Context, accessToken string, id int64) error
	Upload(ctx context.Context, accessToken string, changesetID int64, req api.UploadRequest) (*api.UploadResponse, error)
	GetElement(ctx context.Context, elementType string, id int64) (*api.Element, error)
	History(ctx context.Context, elementType string, id int64) ([]api.Element, error)
}

// Error ответ сервера с кодом вне 2xx
type Error struct {
	StatusCode int
	Kind       string // вид ошибки diff, если сервер его указал
	Message    string
}

func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server error (%d, %s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// IsConflict сообщает, что diff отклонен из-за параллельного изменения.
// Такой diff можно отправить повторно после обновления базовых версий.
func IsConflict(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == "conflict" || apiErr.StatusCode == http.StatusConflict
}

// IsStatus сообщает, что сервер ответил кодом status
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	backoff    func() retry.Backoff
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
		},
	}
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", "", req, &resp)
	if err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", "", req, &resp)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// CreateChangeset открывает новый changeset
func (c *Client) CreateChangeset(ctx context.Context, accessToken string, req api.CreateChangesetRequest) (*api.Changeset, error) {
	var resp api.Changeset
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/changesets", accessToken, req, &resp)
	if err != nil {
		return nil, fmt.Errorf("create changeset request failed: %w", err)
	}
	return &resp, nil
}

// GetChangeset получает changeset по id
func (c *Client) GetChangeset(ctx context.Context, id int64) (*api.Changeset, error) {
	var resp api.Changeset
	err := c.getWithRetry(ctx, "/api/v1/changesets/"+strconv.FormatInt(id, 10), &resp)
	if err != nil {
		return nil, fmt.Errorf("get changeset request failed: %w", err)
	}
	return &resp, nil
}

// CloseChangeset закрывает changeset
func (c *Client) CloseChangeset(ctx context.Context, accessToken string, id int64) error {
	path := "/api/v1/changesets/" + strconv.FormatInt(id, 10) + "/close"
	if err := c.doRequest(ctx, http.MethodPut, path, accessToken, nil, nil); err != nil {
		return fmt.Errorf("close changeset request failed: %w", err)
	}
	return nil
}

// Upload отправляет diff в changeset. Не повторяется: при конфликте
// вызывающий решает, что делать с локальными правками.
func (c *Client) Upload(ctx context.Context, accessToken string, changesetID int64, req api.UploadRequest) (*api.UploadResponse, error) {
	var resp api.UploadResponse
	path := "/api/v1/changesets/" + strconv.FormatInt(changesetID, 10) + "/upload"
	if err := c.doRequest(ctx, http.MethodPost, path, accessToken, req, &resp); err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	return &resp, nil
}

// GetElement получает последнюю ревизию элемента.
// Удаленный элемент возвращается вместе с ошибкой 410.
func (c *Client) GetElement(ctx context.Context, elementType string, id int64) (*api.Element, error) {
	var resp api.Element
	path := "/api/v1/elements/" + url.PathEscape(elementType) + "/" + strconv.FormatInt(id, 10)
	if err := c.getWithRetry(ctx, path, &resp); err != nil {
		if IsStatus(err, http.StatusGone) {
			return &resp, err
		}
		return nil, fmt.Errorf("get element request failed: %w", err)
	}
	return &resp, nil
}

// History получает все ревизии элемента
func (c *Client) History(ctx context.Context, elementType string, id int64) ([]api.Element, error) {
	var resp api.ElementsResponse
	path := "/api/v1/elements/" + url.PathEscape(elementType) + "/" + strconv.FormatInt(id, 10) + "/history"
	if err := c.getWithRetry(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	return resp.Elements, nil
}

// getWithRetry повторяет GET при сетевых ошибках и ответах 5xx
func (c *Client) getWithRetry(ctx context.Context, path string, result interface{}) error {
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		err := c.doRequest(ctx, http.MethodGet, path, "", nil, result)
		var apiErr *Error
		if err != nil && (!errors.As(err, &apiErr) || apiErr.StatusCode >= http.StatusInternalServerError) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path, accessToken string, body, result interface{}) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 410 несет удаленную ревизию вместо ErrorResponse
		if resp.StatusCode == http.StatusGone && result != nil {
			_ = json.Unmarshal(respBody, result)
			return &Error{StatusCode: resp.StatusCode, Message: "element deleted"}
		}

		apiErr := &Error{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(respBody))}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			apiErr.Message = errResp.Message
			apiErr.Kind = errResp.Kind
		}
		return apiErr
	}

	// Декодируем успешный ответ
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
