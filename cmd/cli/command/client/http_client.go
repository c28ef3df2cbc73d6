package client

// http_client.go = REST calls from the linetest CLI to the event server.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"linetest/cmd/cli/dto"
)

// a full start-test run waits for every stage on the station
const startTestTimeout = 2 * time.Minute

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func NewHTTPClient(apiURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: startTestTimeout,
		},
	}
}

// set token for HTTP client
func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

func (c *HTTPClient) StartTest(ctx context.Context, serial string) (*dto.StartTestResponse, error) {
	var result dto.StartTestResponse
	if err := c.do(ctx, http.MethodPost, "/api/pcba/start-test", dto.StartTestRequest{Serial: serial}, &result); err != nil {
		return nil, fmt.Errorf("start test: %w", err)
	}
	return &result, nil
}

func (c *HTTPClient) UIDSearch(ctx context.Context, uid string) (*dto.UIDSearchResponse, error) {
	var result dto.UIDSearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/pcba/uid-search", dto.UIDSearchRequest{UID: uid}, &result); err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	return &result, nil
}

func (c *HTTPClient) ListRecords(ctx context.Context, q dto.RecordQuery) ([]dto.TestRecordResponse, error) {
	params := url.Values{}
	if q.Skip > 0 {
		params.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.DeviceID != "" {
		params.Set("device_id", q.DeviceID)
	}
	if q.TestResult != "" {
		params.Set("test_result", q.TestResult)
	}
	if q.StartDate != "" {
		params.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		params.Set("end_date", q.EndDate)
	}

	path := "/api/test-records"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var result []dto.TestRecordResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return result, nil
}

// do sends body as JSON and decodes a 2xx answer into result. Error answers
// are reported with the server's error message.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close() // Ensure the response body is closed

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		var apiErr dto.ErrorResponse
		if json.NewDecoder(response.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", response.Status, apiErr.Error)
		}
		return fmt.Errorf("request failed with status: %s", response.Status)
	}

	if result == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(result)
}
