package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrNotFound = errors.New("not found")

// HttpError is returned for any response with a status code of 400 or above.
type HttpError struct {
	Method     string
	Url        string
	StatusCode int
	Message    string
}

func (e *HttpError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d - %s", e.Method, e.Url, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Url, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *HttpError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsConnectError reports whether err happened before any HTTP response was received.
func IsConnectError(err error) bool {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func CloseResponse(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// errorMessage prefers the "error" field of a json body over the raw text.
func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return string(bytes.TrimSpace(body))
}

func (httpClient *HttpClient) do(ctx context.Context, method, url string, body io.Reader, header http.Header) (*http.Response, []byte, error) {
	url, err := httpClient.FixHttpScheme(url)
	if err != nil {
		return nil, nil, err
	}
	request, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range header {
		request.Header[k] = v
	}

	response, err := httpClient.Client.Do(request)
	if err != nil {
		return nil, nil, err
	}
	defer CloseResponse(response)

	b, err := io.ReadAll(response.Body)
	if response.StatusCode >= 400 {
		return response, b, &HttpError{Method: method, Url: url, StatusCode: response.StatusCode, Message: errorMessage(b)}
	}
	if err != nil {
		return response, nil, err
	}
	return response, b, nil
}

func (httpClient *HttpClient) Get(ctx context.Context, url string) ([]byte, error) {
	_, b, err := httpClient.do(ctx, http.MethodGet, url, nil, nil)
	return b, err
}

// GetJson decodes the response into v. A non-empty "error" field in a 200 response is an error too.
func (httpClient *HttpClient) GetJson(ctx context.Context, url string, v interface{}) error {
	b, err := httpClient.Get(ctx, url)
	if err != nil {
		return err
	}
	if msg := gjson.GetBytes(b, "error"); msg.Exists() && msg.String() != "" {
		return fmt.Errorf("%s: %s", url, msg.String())
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (httpClient *HttpClient) Head(ctx context.Context, url string) (http.Header, error) {
	response, _, err := httpClient.do(ctx, http.MethodHead, url, nil, nil)
	if err != nil {
		return nil, err
	}
	return response.Header, nil
}

func (httpClient *HttpClient) Delete(ctx context.Context, url string) error {
	_, _, err := httpClient.do(ctx, http.MethodDelete, url, nil, nil)
	return err
}

// PostMultipart uploads data as a single multipart form file field.
func (httpClient *HttpClient) PostMultipart(ctx context.Context, url, fieldName, fileName, mimeType string, data []byte) (int, []byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldName, fileName))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return 0, nil, err
	}
	if _, err = part.Write(data); err != nil {
		return 0, nil, err
	}
	if err = writer.Close(); err != nil {
		return 0, nil, err
	}

	header := http.Header{}
	header.Set("Content-Type", writer.FormDataContentType())
	response, b, err := httpClient.do(ctx, http.MethodPost, url, &buf, header)
	if response == nil {
		return 0, nil, err
	}
	return response.StatusCode, b, err
}
