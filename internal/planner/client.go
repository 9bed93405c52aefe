package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// Client posts planning requests to the /plan endpoint.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient targets baseURL + "/plan". The http.Client's own timeout is the
// only deadline.
func NewClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:        strings.TrimRight(baseURL, "/") + "/plan",
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) Plan(ctx context.Context, req Request) Result {
	if strings.TrimSpace(req.Title) == "" {
		return Failure{Reason: ReasonNoTitle}
	}
	if req.File == nil {
		return Failure{Reason: ReasonNoFile}
	}

	body, contentType, err := encodeMultipart(req)
	if err != nil {
		c.logger.Error("encode plan request", "error", err)
		return Failure{Reason: ReasonUnavailable}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		c.logger.Error("build plan request", "error", err)
		return Failure{Reason: ReasonUnavailable}
	}
	httpReq.Header.Set("Content-Type", contentType)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("plan request failed", "error", err)
		return Failure{Reason: ReasonUnavailable}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		c.logger.Warn("plan request rejected", "status", resp.StatusCode)
		return Failure{Reason: ReasonUnavailable}
	}

	var out struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Failure{Reason: ReasonUnparseable}
	}
	return ParseMessage(out.Message)
}

func encodeMultipart(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{{"title", req.Title}, {"description", req.Description}, {"location", req.Location}}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	h := make(textproto.MIMEHeader)
	name := req.File.Name
	if name == "" {
		name = "upload"
	}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	ct := req.File.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(req.File.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
