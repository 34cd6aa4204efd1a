package engine

import (
	"fmt"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/crypto"
	"dominicbreuker/tlsduplex/pkg/duplex"
)

// ForClient returns the binder for the dialing side of cfg.
func ForClient(cfg *config.Shared) (duplex.Binder, error) {
	return forRole(cfg, true)
}

// ForServer returns the binder for the accepting side of cfg. Certificates
// are generated once and shared by every stream it binds.
func ForServer(cfg *config.Shared) (duplex.Binder, error) {
	return forRole(cfg, false)
}

func forRole(cfg *config.Shared, client bool) (duplex.Binder, error) {
	switch cfg.Security() {
	case config.SecurityTLS, config.SecurityMutualTLS:
		cfg.Logger.VerboseMsg("Generating TLS certificates\n")
		bundle, err := crypto.NewBundle(cfg.GetKey())
		if err != nil {
			return nil, fmt.Errorf("crypto.NewBundle(): %w", err)
		}
		if client {
			return TLSClient(bundle.ClientConfig()), nil
		}
		return TLSServer(bundle.ServerConfig()), nil

	case config.SecurityXChaCha20:
		return NewXChaCha20(cfg.GetKey()), nil
	}

	return NewPlain(), nil
}
