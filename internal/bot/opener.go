package bot

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nkotelnikov/telesweep/internal/gateway"
)

// GatewayOpener opens delegated sessions against the real gateway.
type GatewayOpener struct {
	BaseURL        string
	Logger         *zap.Logger
	ConnectRetries uint64
	DeleteRate     rate.Limit
	DeleteBurst    int
	HTTPClient     *http.Client
}

var _ SessionOpener = (*GatewayOpener)(nil)

// Open constructs a UserClient from the decrypted session blob and verifies it
// is still authorized. The client is closed here on failure; on success the
// caller owns teardown.
func (o *GatewayOpener) Open(ctx context.Context, session []byte) (UserSession, gateway.Account, error) {
	uc := gateway.NewUserClient(o.BaseURL, string(session), o.Logger,
		gateway.WithConnectRetries(o.ConnectRetries),
		gateway.WithDeleteRate(o.DeleteRate, o.DeleteBurst),
	)
	acc, err := uc.Connect(ctx)
	if err != nil {
		uc.Close()
		return nil, gateway.Account{}, err
	}
	return uc, acc, nil
}

// Authorize exchanges a one-time authorization code for a fresh session grant.
func (o *GatewayOpener) Authorize(ctx context.Context, code string) (gateway.Grant, error) {
	return gateway.Authorize(ctx, o.BaseURL, code, o.HTTPClient)
}
