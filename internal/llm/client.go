package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/youruser/wireframe/internal/logging"
)

var (
	ErrRequestFailed = errors.New("API request failed")
	log              = logging.Get()
)

const defaultRequestTimeout = 30 * time.Second

// readBufSize is the transport read granularity. Chunk boundaries carry no
// meaning; the reframer downstream reassembles lines.
const readBufSize = 4096

// Client handles communication with the remote generation API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new generation API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// Generate sends a generation request and streams the line-delimited
// response body back through onChunk as raw text chunks, exactly as they
// arrive from the network. Returns nil on clean end-of-stream. Cancelling
// ctx aborts the in-flight read at the HTTP layer and surfaces ctx.Err().
// A non-nil error from onChunk aborts the stream with that error.
func (c *Client) Generate(ctx context.Context, genReq GenerateRequest, onChunk func(chunk string) error) error {
	bodyBytes, err := json.Marshal(genReq)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Debug("HTTP POST %s/generate (model: %s, mode: %s)", c.baseURL, genReq.Model, genReq.Mode)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return err
	}
	defer resp.Body.Close()

	log.Debug("HTTP response status: %d", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error("API error %d: %s", resp.StatusCode, string(body))
		return fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	buf := make([]byte, readBufSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if cbErr := onChunk(string(buf[:n])); cbErr != nil {
				return cbErr
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			// Cancelling ctx closes the body mid-read; report the
			// cancellation rather than the IO error it provoked.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("Stream read error: %v", readErr)
			return readErr
		}
	}
}

// GetBalance fetches the account balance.
func (c *Client) GetBalance() (*BalanceResponse, error) {
	var balance BalanceResponse
	if err := c.getJSON("/credits", &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// GetModels fetches the list of available generation models.
func (c *Client) GetModels() (*ModelsResponse, error) {
	var models ModelsResponse
	if err := c.getJSON("/models", &models); err != nil {
		return nil, err
	}
	return &models, nil
}

func (c *Client) getJSON(path string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Debug("HTTP GET %s%s", c.baseURL, path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error("API error %d: %s", resp.StatusCode, string(body))
		return fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
