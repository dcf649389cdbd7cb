package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"detmon-go/internal/types"
)

// Client polls a SIMPLON-style monitor HTTP API for the most recently
// completed frame. Geometry is read once at construction; an unreachable or
// misconfigured detector surfaces there, synchronously, because the loop
// cannot meaningfully start without it. Everything after construction maps
// to the recoverable tick-level errors.
type Client struct {
	baseURL string
	version string
	http    *http.Client
	geom    types.Geometry
}

const defaultTimeout = 2 * time.Second

func New(ctx context.Context, baseURL, apiVersion string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing base url")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: baseURL,
		version: strings.Trim(apiVersion, "/"),
		http:    &http.Client{Timeout: timeout},
	}

	geom, err := c.readGeometry(ctx)
	if err != nil {
		return nil, fmt.Errorf("read detector geometry: %w", err)
	}
	if err := geom.Validate(); err != nil {
		return nil, fmt.Errorf("detector reported %w", err)
	}
	c.geom = geom
	return c, nil
}

// LatestIndex returns the id of the newest completed frame, -1 when the
// monitor buffer is still empty.
func (c *Client) LatestIndex(ctx context.Context) (int64, error) {
	var value int64
	if err := c.getValue(ctx, c.monitorPath("status/last_image_id"), &value); err != nil {
		return 0, err
	}
	return value, nil
}

// Fetch reads the raw frame bytes for index. The monitor holds only the
// most recent frames, so a frame overwritten before it could be read comes
// back as ErrIndexExpired.
func (c *Client) Fetch(ctx context.Context, index int64) ([]byte, error) {
	url := c.monitorPath(fmt.Sprintf("images/%d", index))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return nil, fmt.Errorf("%w: image %d", types.ErrIndexExpired, index)
	default:
		return nil, fmt.Errorf("%w: image %d returned http %d", types.ErrSourceUnavailable, index, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<28))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	return body, nil
}

func (c *Client) ExposureSeconds(ctx context.Context) (float64, error) {
	var value float64
	if err := c.getValue(ctx, c.configPath("count_time"), &value); err != nil {
		return 0, err
	}
	return value, nil
}

func (c *Client) Geometry() types.Geometry { return c.geom }

func (c *Client) readGeometry(ctx context.Context) (types.Geometry, error) {
	var width, height, channels, bitDepth int64
	for param, dst := range map[string]*int64{
		"x_pixels_in_detector": &width,
		"y_pixels_in_detector": &height,
		"number_of_channels":   &channels,
		"bit_depth_image":      &bitDepth,
	} {
		if err := c.getValue(ctx, c.configPath(param), dst); err != nil {
			return types.Geometry{}, fmt.Errorf("%s: %w", param, err)
		}
	}
	if bitDepth <= 0 || bitDepth%8 != 0 {
		return types.Geometry{}, fmt.Errorf("bit_depth_image: unsupported value %d", bitDepth)
	}
	return types.Geometry{
		Channels:  int(channels),
		Width:     int(width),
		Height:    int(height),
		ByteWidth: int(bitDepth / 8),
	}, nil
}

/// getValue reads a {"value": ...} envelope into dst.
func (c *Client) getValue(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned http %d", types.ErrSourceUnavailable, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	envelope := struct {
		Value json.RawMessage `json:"value"`
	}{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: invalid response from %s: %v", types.ErrSourceUnavailable, url, err)
	}
	if err := json.Unmarshal(envelope.Value, dst); err != nil {
		return fmt.Errorf("%w: invalid value from %s: %v", types.ErrSourceUnavailable, url, err)
	}
	return nil
}

func (c *Client) monitorPath(suffix string) string {
	return c.baseURL + "/monitor/api/" + c.version + "/" + suffix
}

func (c *Client) configPath(param string) string {
	return c.baseURL + "/detector/api/" + c.version + "/config/" + param
}
