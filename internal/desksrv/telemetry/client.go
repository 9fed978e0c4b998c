package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/desksrv/config"
	"github.com/deskwise/deskwise/internal/desksrv/deskcommon"
)

// Client reads desk state over the controller's REST API. The API keys
// every path by the configured credential, so the key never travels in a
// header.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a telemetry client from the service configuration.
func NewClient(cfg *config.TelemetryConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.GetRequestTimeoutOrDefault(),
		},
	}
}

// GetState fetches the desk's live state from the controller.
func (c *Client) GetState(ctx context.Context, deskID string) (deskcommon.DeskState, apperrors.Error) {
	state := deskcommon.DeskState{}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return state, ErrTelemetry.Msg("invalid controller URL").Err(err)
	}
	u.Path = path.Join(u.Path, "api/v2", c.apiKey, "desks", deskID, "state")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return state, ErrTelemetry.Msg("failed to create request").Err(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("desk_id", deskID).Msg("desk controller request failed")
		return state, ErrUnavailable.Err(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return state, ErrUnavailable.Msg("failed to read controller response").Err(err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return state, ErrDeskNotFound
	}
	if resp.StatusCode >= 400 {
		msg := "controller error"
		if errMsg := gjson.GetBytes(body, "error"); errMsg.Exists() {
			msg = errMsg.String()
		}
		log.Ctx(ctx).Error().Int("status", resp.StatusCode).Str("desk_id", deskID).Msg(msg)
		return state, ErrUnavailable.Msg(msg)
	}

	if !gjson.ValidBytes(body) {
		return state, ErrUnavailable.Msg("malformed controller response")
	}
	parsed := gjson.ParseBytes(body)
	position := parsed.Get("position_mm")
	if !position.Exists() {
		return state, ErrUnavailable.Msg("controller response missing position")
	}
	state.PositionMM = int(position.Int())
	state.SpeedMMS = int(parsed.Get("speed_mms").Int())
	state.Status = parsed.Get("status").String()
	return state, nil
}
