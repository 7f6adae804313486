// Package rest talks to the remote tables through a PostgREST-compatible
// HTTP API, as exposed by hosted backends.
package rest

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

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/remote"
)

type Client struct {
	baseURL    string
	apiKey     string
	token      func() string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithToken sets the source of the user's access token. Without it the API
// key is sent as the bearer token.
func WithToken(fn func() string) Option {
	return func(cl *Client) { cl.token = fn }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// apiError is the PostgREST error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (c *Client) tableURL(table string, query url.Values) string {
	return c.baseURL + "/rest/v1/" + url.PathEscape(table) + "?" + query.Encode()
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	bearer := c.apiKey
	if c.token != nil {
		if t := c.token(); t != "" {
			bearer = t
		}
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (c *Client) Select(ctx context.Context, table remote.Table, userID string) ([]remote.Row, error) {
	q := url.Values{}
	q.Set("select", strings.Join(table.ColumnNames(), ","))
	q.Set(remote.UserIDColumn, "eq."+userID)

	if len(table.OrderBy) > 0 {
		parts := make([]string, len(table.OrderBy))
		for i, o := range table.OrderBy {
			parts[i] = o.Column + ".asc"
			if o.Desc {
				parts[i] = o.Column + ".desc"
			}
		}

		q.Set("order", strings.Join(parts, ","))
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.tableURL(table.Name, q), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", table.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("selecting %s: %w", table.Name, decodeError(table.Name, resp))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", table.Name, err)
	}

	rows := make([]remote.Row, len(raw))
	for i, r := range raw {
		rows[i] = normalizeRow(table, r)
	}

	return rows, nil
}

func (c *Client) Upsert(ctx context.Context, table remote.Table, rows []remote.Row, onConflict string) error {
	if len(rows) == 0 {
		return nil
	}

	payload := make([]map[string]any, len(rows))
	for i, r := range rows {
		payload[i] = encodeRow(table, r)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", table.Name, err)
	}

	q := url.Values{}
	q.Set("on_conflict", onConflict)

	req, err := c.newRequest(ctx, http.MethodPost, c.tableURL(table.Name, q), bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upserting %s: %w", table.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upserting %s: %w", table.Name, decodeError(table.Name, resp))
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

func decodeError(table string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body apiError
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}

		return remote.NewError(table, "", resp.StatusCode, msg)
	}

	return remote.NewError(table, body.Code, resp.StatusCode, body.Message)
}

// normalizeRow restricts a response object to the table's columns and turns
// JSON numbers into decimals.
func normalizeRow(table remote.Table, in map[string]any) remote.Row {
	row := make(remote.Row, len(table.Columns))

	for _, c := range table.Columns {
		v, ok := in[c.Name]
		if !ok {
			continue
		}

		if n, isNum := v.(json.Number); isNum && c.Type == remote.TypeNumeric {
			if d, err := decimal.NewFromString(n.String()); err == nil {
				v = d
			}
		}

		row[c.Name] = v
	}

	return row
}

// encodeRow sends numerics as JSON numbers and timestamps as RFC 3339.
func encodeRow(table remote.Table, r remote.Row) map[string]any {
	out := make(map[string]any, len(table.Columns))

	for _, c := range table.Columns {
		v, ok := r[c.Name]
		if !ok {
			continue
		}

		switch x := v.(type) {
		case decimal.Decimal:
			v = json.Number(x.String())
		case time.Time:
			v = x.UTC().Format(time.RFC3339Nano)
		}

		out[c.Name] = v
	}

	return out
}
