package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/shiori-reader/shiori-server/internal/auth"
	"github.com/shiori-reader/shiori-server/internal/config"
)

// ShareKey wraps the share token key bytes.
type ShareKey []byte

// ProvideShareKey loads or generates the PASETO share token key.
func ProvideShareKey(i do.Injector) (ShareKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		return nil, err
	}
	cfg.Share.TokenKey = key

	log.Info("share token key loaded",
		"session_duration", cfg.Share.SessionDuration,
	)
	return ShareKey(key), nil
}

// ProvideTokenService provides the PASETO share session token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key := do.MustInvoke[ShareKey](i)

	return auth.NewTokenService([]byte(key), cfg.Share.SessionDuration)
}
