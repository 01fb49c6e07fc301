package uploader

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-resty/resty/v2"
	"github.com/xaionaro-go/remotemic/pkg/capability"
)

const logBodyPreviewLength = 100

// Payload is the JSON body of an upload.
type Payload struct {
	Audio string `json:"audio"`
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("the endpoint answered with status %d: %s", e.StatusCode, preview(e.Body))
}

// HTTP posts every payload once to a fixed endpoint; it never retries.
type HTTP struct {
	URL    string
	client *resty.Client
}

var _ capability.Uploader = (*HTTP)(nil)

// New returns an uploader; zero timeout means no timeout at all.
func New(url string, timeout time.Duration) *HTTP {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &HTTP{
		URL:    url,
		client: client,
	}
}

func (u *HTTP) Upload(
	ctx context.Context,
	payload string,
) (_ []byte, _err error) {
	logger.Debugf(ctx, "Upload: %d bytes to %s", len(payload), u.URL)
	defer func() { logger.Debugf(ctx, "/Upload: %v", _err) }()

	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(Payload{Audio: payload}).
		Post(u.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to send the audio to %s: %w", u.URL, err)
	}
	body := resp.Body()
	if !resp.IsSuccess() {
		return body, &StatusError{
			StatusCode: resp.StatusCode(),
			Body:       body,
		}
	}
	logger.Infof(ctx, "audio sent successfully: %s", preview(body))
	return body, nil
}

func preview(b []byte) string {
	if len(b) <= logBodyPreviewLength {
		return string(b)
	}
	return string(b[:logBodyPreviewLength]) + "..."
}
