package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/tOgg1/ren/internal/adapters"
	"github.com/tOgg1/ren/internal/chat"
	"github.com/tOgg1/ren/internal/logging"
)

// conversation is an opened backend plus a session over it.
type conversation struct {
	userID  string
	backend adapters.Backend
	session *chat.Session
}

func (c *conversation) Close() {
	c.session.Close()
	if err := c.backend.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close backend")
	}
}

func (a *app) openBackend(ctx context.Context) (adapters.Backend, string, error) {
	userID, source := a.userID()
	ctx = logging.WithContext(ctx, logging.WithUser(userID))
	backend, err := adapters.Open(ctx, a.cfg, userID)
	if err != nil {
		if errors.Is(err, adapters.ErrUserRequired) {
			return nil, "", Exitf(ExitCodeUsage, "%v", err)
		}
		return nil, "", Exitf(ExitCodeFailure, "open %s backend: %v", a.cfg.Backend.Mode, err)
	}
	logger := logging.FromContext(ctx)
	logger.Debug().
		Str("source", source).
		Str("backend", a.cfg.Backend.Mode).
		Msg("backend opened")
	return backend, userID, nil
}

func (a *app) openConversation(ctx context.Context) (*conversation, error) {
	backend, userID, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	logger := logging.WithUser(userID).With().Str("component", "chat").Logger()
	session, err := chat.NewSession(backend, backend, chat.WithLogger(logger))
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &conversation{userID: userID, backend: backend, session: session}, nil
}
