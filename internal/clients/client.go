// internal/clients/client.go
package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	jsoniter "github.com/json-iterator/go"

	"libradesk/internal/circulation"
	"libradesk/internal/domain"
	"libradesk/internal/httpx"
	"libradesk/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client calls the libradesk HTTP API. Error responses come back wrapping
// the matching domain error kind.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL. A nil httpClient
// uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// BookInput is the form payload for a new book. Year is sent as typed.
type BookInput struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   int    `json:"year"`
	Genre  string `json:"genre"`
}

func (c *Client) RegisterUser(ctx context.Context, name, email string) (*domain.User, error) {
	var user domain.User
	body := map[string]string{"name": name, "email": email}
	if err := c.do(ctx, http.MethodPost, "/users", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AddBook(ctx context.Context, in BookInput) (*domain.Book, error) {
	var book domain.Book
	if err := c.do(ctx, http.MethodPost, "/books", in, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	var book domain.Book
	if err := c.do(ctx, http.MethodGet, "/books/"+url.PathEscape(id), nil, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) RemoveBook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/books/"+url.PathEscape(id), nil, nil)
}

func (c *Client) CreateLoan(ctx context.Context, userID, bookID string) (*domain.Loan, error) {
	var loan domain.Loan
	body := map[string]string{"userId": userID, "bookId": bookID}
	if err := c.do(ctx, http.MethodPost, "/loans", body, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *Client) ReturnLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	var loan domain.Loan
	if err := c.do(ctx, http.MethodPost, "/loans/"+url.PathEscape(loanID)+"/return", nil, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *Client) ListLoans(ctx context.Context) ([]circulation.LoanView, error) {
	var loans []circulation.LoanView
	if err := c.do(ctx, http.MethodGet, "/loans", nil, &loans); err != nil {
		return nil, err
	}
	return loans, nil
}

func (c *Client) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, &stats)
	return stats, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var body httpx.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	var kind error
	switch body.Error {
	case "validation":
		kind = domain.ErrValidation
	case "not_found":
		kind = domain.ErrNotFound
	case "conflict":
		kind = domain.ErrConflict
	case "storage":
		kind = domain.ErrStorage
	default:
		return fmt.Errorf("%s (status %d): %s", body.Error, resp.StatusCode, body.Message)
	}
	return fmt.Errorf("%w (status %d): %s", kind, resp.StatusCode, body.Message)
}
