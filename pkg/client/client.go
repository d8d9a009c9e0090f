// Package client provides a Go client for a SynkNode.
//
// It speaks both ingress paths of a node:
//   - the HTTP/JSON API (Status, Get, Put);
//   - the one-shot TCP text protocol (RawTCP, TCPGet, TCPPut).
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Custom Errors ---

// ErrNotFound is returned when the key does not exist on the node.
var ErrNotFound = errors.New("key not found")

// APIError represents an unexpected HTTP status returned by the node.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// ProtocolError is an ERR reply, or a reply the client does not understand,
// on the TCP protocol.
type ProtocolError struct {
	Reply string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected TCP reply: %q", e.Reply)
}

// --- JSON Response Structs ---

// Status is the body of GET /status.
type Status struct {
	NodeID   string   `json:"node_id"`
	TCPPort  int      `json:"tcp_port"`
	HTTPPort int      `json:"http_port"`
	Keys     []string `json:"keys"`
}

type kvResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// --- Client ---

// Client talks to a single node.
type Client struct {
	baseURL    string
	tcpAddr    string
	httpClient *http.Client
	dialer     net.Dialer
	timeout    time.Duration
}

// New creates a client for the node at host.
func New(host string, httpPort, tcpPort int) *Client {
	return &Client{
		baseURL:    "http://" + net.JoinHostPort(host, strconv.Itoa(httpPort)),
		tcpAddr:    net.JoinHostPort(host, strconv.Itoa(tcpPort)),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialer:     net.Dialer{Timeout: 5 * time.Second},
		timeout:    10 * time.Second,
	}
}

// do executes a request and returns the status code and body.
func (c *Client) do(method, endpoint string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal JSON payload: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// --- HTTP Methods ---

// Status returns the node identity, its ports and its keys.
func (c *Client) Status() (*Status, error) {
	code, body, err := c.do(http.MethodGet, "/status", nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, &APIError{StatusCode: code, Message: string(body)}
	}
	var st Status
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("invalid JSON response for status: %w", err)
	}
	return &st, nil
}

// Get retrieves a value over HTTP. A missing key returns ErrNotFound.
func (c *Client) Get(key string) (string, error) {
	code, body, err := c.do(http.MethodGet, "/data/"+url.PathEscape(key), nil)
	if err != nil {
		return "", err
	}
	switch code {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", ErrNotFound
	default:
		return "", &APIError{StatusCode: code, Message: string(body)}
	}
	var resp kvResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid JSON response for GET: %w", err)
	}
	return resp.Value, nil
}

// Put stores a value over HTTP.
func (c *Client) Put(key, value string) error {
	code, body, err := c.do(http.MethodPost, "/store", map[string]string{"key": key, "value": value})
	if err != nil {
		return err
	}
	if code != http.StatusCreated {
		return &APIError{StatusCode: code, Message: string(body)}
	}
	return nil
}

// --- TCP Methods ---

// RawTCP sends one request line and returns the full reply.
// The node closes the connection after replying.
func (c *Client) RawTCP(line string) (string, error) {
	conn, err := c.dialer.Dial("tcp", c.tcpAddr)
	if err != nil {
		return "", fmt.Errorf("connection error: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := io.WriteString(conn, line); err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}
	return string(reply), nil
}

// TCPGet retrieves a value over TCP. A missing key returns ErrNotFound.
func (c *Client) TCPGet(key string) (string, error) {
	reply, err := c.RawTCP("GET " + key + "\n")
	if err != nil {
		return "", err
	}
	switch {
	case reply == "NOTFOUND\n":
		return "", ErrNotFound
	case strings.HasPrefix(reply, "VALUE ") && strings.HasSuffix(reply, "\n"):
		return strings.TrimSuffix(strings.TrimPrefix(reply, "VALUE "), "\n"), nil
	}
	return "", &ProtocolError{Reply: reply}
}

// TCPPut stores a value over TCP. The value must not contain a newline.
func (c *Client) TCPPut(key, value string) error {
	reply, err := c.RawTCP("PUT " + key + " " + value + "\n")
	if err != nil {
		return err
	}
	if reply != "OK\n" {
		return &ProtocolError{Reply: reply}
	}
	return nil
}
