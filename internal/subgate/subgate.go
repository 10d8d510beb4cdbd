// Package subgate consults an external sponsor-subscription service before
// user-facing operations are allowed.
package subgate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/config"
	"github.com/srvnk/starsbot/pkg/clients"
)

type Gate struct {
	url    string
	key    string
	client clients.HTTPClientI
}

func New(cfg *config.Config, client clients.HTTPClientI) *Gate {
	return &Gate{
		url:    cfg.GateURL,
		key:    cfg.GateKey,
		client: client,
	}
}

type checkResponse struct {
	Subscribed bool `json:"subscribed"`
}

// IsSubscribed asks the gate whether the user passed the sponsor
// subscriptions. The gate fails open: any error, bad status or malformed
// body allows access.
func (g *Gate) IsSubscribed(ctx context.Context, userID int64, locale string) bool {
	if g.url == "" {
		return true
	}
	if err := ctx.Err(); err != nil {
		return true
	}

	url := fmt.Sprintf("%s/check?user_id=%d&lang=%s", g.url, userID, locale)
	headers := http.Header{}
	if g.key != "" {
		headers.Set("Authorization", "Bearer "+g.key)
	}

	status, body, _, err := g.client.Get(url, headers)
	if err != nil {
		zap.L().Warn("subscription gate unreachable", zap.Error(err))
		return true
	}
	if status != http.StatusOK {
		zap.L().Warn("subscription gate bad status", zap.Int("status", status))
		return true
	}

	var resp checkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		zap.L().Warn("subscription gate bad response", zap.Error(err))
		return true
	}
	return resp.Subscribed
}
