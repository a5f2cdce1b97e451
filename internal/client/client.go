// Package client is the Go API client used by the CLI watchers. Calls are
// authenticated with the token of the Session the client was built with.
package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/app/services"
	httpclient "github.com/campusbite/canteen/pkg/http"
	"github.com/campusbite/canteen/pkg/response"
)

const requestTimeout = 15 * time.Second

// ErrNotSignedIn is returned by authenticated calls on an empty session.
var ErrNotSignedIn = errors.New("client: not signed in")

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for k, v := range e.Fields {
			parts = append(parts, k+": "+v)
		}
		return fmt.Sprintf("api: %d %s (%s)", e.Status, e.Message, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type Client struct {
	base    string
	session *Session
	http    *http.Client
}

// New builds a client for baseURL. httpClient may be nil.
func New(baseURL string, session *Session, httpClient *http.Client) *Client {
	if session == nil {
		session = NewSession("")
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), session: session, http: httpClient}
}

func (c *Client) Session() *Session { return c.session }

func (c *Client) request(ctx context.Context, method, path string, auth bool) (*httpclient.Request, error) {
	req := httpclient.New(method, c.base+path).WithContext(ctx).Timeout(requestTimeout)
	if c.http != nil {
		req = req.Using(c.http)
	}
	if method == http.MethodGet {
		req = req.Retry(2, 300*time.Millisecond)
	}
	if auth {
		token := c.session.Token()
		if token == "" {
			return nil, ErrNotSignedIn
		}
		req = req.Bearer(token)
	}
	return req, nil
}

// call sends the request and decodes the envelope's data into dest.
func (c *Client) call(ctx context.Context, method, path string, auth bool, body, dest interface{}) error {
	req, err := c.request(ctx, method, path, auth)
	if err != nil {
		return err
	}
	if body != nil {
		req = req.Body(body)
	}
	resp, err := req.Send()
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env response.Envelope
	if err := resp.JSON(&env); err != nil {
		if !resp.OK() {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return err
	}
	if !resp.OK() {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Fields: env.Errors}
	}
	if dest == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

// Login signs in, updates the session and persists it.
func (c *Client) Login(ctx context.Context, email, password string) (models.User, error) {
	var res services.AuthResult
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", false, services.LoginInput{Email: email, Password: password}, &res); err != nil {
		return models.User{}, err
	}
	c.session.Set(res.Token, res.ExpiresAt, res.User)
	if c.session.path != "" {
		if err := c.session.Persist(); err != nil {
			return res.User, err
		}
	}
	return res.User, nil
}

// Logout clears the session.
func (c *Client) Logout() error { return c.session.Clear() }

func (c *Client) Me(ctx context.Context) (models.User, error) {
	var u models.User
	err := c.call(ctx, http.MethodGet, "/api/me", true, nil, &u)
	return u, err
}

func (c *Client) Shops(ctx context.Context) ([]models.Shop, error) {
	var out []models.Shop
	err := c.call(ctx, http.MethodGet, "/api/shops", true, nil, &out)
	return out, err
}

// MyShops lists the shops the signed-in shopkeeper owns.
func (c *Client) MyShops(ctx context.Context) ([]models.Shop, error) {
	var out []models.Shop
	err := c.call(ctx, http.MethodGet, "/api/shopkeeper/shops", true, nil, &out)
	return out, err
}

func (c *Client) CreateShop(ctx context.Context, in services.ShopInput) (models.Shop, error) {
	var out models.Shop
	err := c.call(ctx, http.MethodPost, "/api/shops", true, in, &out)
	return out, err
}

func (c *Client) UpdateShop(ctx context.Context, id string, in services.ShopInput) (models.Shop, error) {
	var out models.Shop
	err := c.call(ctx, http.MethodPut, "/api/shops/"+url.PathEscape(id), true, in, &out)
	return out, err
}

func (c *Client) DeleteShop(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/shops/"+url.PathEscape(id), true, nil, nil)
}

// ShopkeeperOrders lists every order of the caller's shops.
func (c *Client) ShopkeeperOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := c.call(ctx, http.MethodGet, "/api/shopkeeper/orders", true, nil, &out)
	return out, err
}

func (c *Client) Orders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := c.call(ctx, http.MethodGet, "/api/orders", true, nil, &out)
	return out, err
}

func (c *Client) PlaceOrder(ctx context.Context, in services.PlaceOrderInput) (models.Order, error) {
	var out models.Order
	err := c.call(ctx, http.MethodPost, "/api/orders", true, in, &out)
	return out, err
}

// UpdateOrderStatus sends status and, when non-nil, reason in one call.
func (c *Client) UpdateOrderStatus(ctx context.Context, id, status string, reason *string) (models.Order, error) {
	var out models.Order
	err := c.call(ctx, http.MethodPatch, "/api/orders/"+url.PathEscape(id)+"/status", true,
		services.StatusInput{Status: status, Reason: reason}, &out)
	return out, err
}

func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	var out []models.Notification
	err := c.call(ctx, http.MethodGet, "/api/notifications", true, nil, &out)
	return out, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPatch, "/api/notifications/"+url.PathEscape(id)+"/read", true, nil, nil)
}

// UploadImage posts base64 data; the server answers with a stored URL or a
// data URL.
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, data []byte) (services.UploadResult, error) {
	var out services.UploadResult
	err := c.call(ctx, http.MethodPost, "/api/uploads/image", true, map[string]string{
		"filename":    filename,
		"contentType": contentType,
		"data":        base64.StdEncoding.EncodeToString(data),
	}, &out)
	return out, err
}

// StreamURL is the websocket endpoint carrying the session token.
func (c *Client) StreamURL() (string, error) {
	u, err := url.Parse(c.base + "/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	token := c.session.Token()
	if token == "" {
		return "", ErrNotSignedIn
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
