package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/mobile-next/handsfree/config"
	"github.com/mobile-next/handsfree/engine"
	"github.com/mobile-next/handsfree/server"
	"github.com/mobile-next/handsfree/utils"
	"go.uber.org/zap"
)

// RunOptions select the optional outer surfaces of a run.
type RunOptions struct {
	// Serve starts the JSON-RPC API and live feed on cfg.Server.Listen.
	Serve bool
	// Token overrides the keyring token; empty reads the keyring.
	Token string
	// LoadToken reads the stored token; nil disables authentication.
	LoadToken func() (string, error)
}

// RunCommand builds the engine from cfg and runs it until Quit, ctx is done
// or a required producer fails.
func RunCommand(ctx context.Context, cfg *config.Config, opts RunOptions) error {
	logger := utils.Logger()

	built, err := engine.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := built.Close(); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	if opts.Serve {
		srv, err := newServer(cfg, built, opts, logger)
		if err != nil {
			return err
		}
		built.Add("server", true, srv.Run)
	}

	utils.Info("handsfree running on the %s backend", built.Device.Name())
	return built.Run(ctx)
}

func newServer(cfg *config.Config, built *engine.Built, opts RunOptions, logger *zap.Logger) (*server.Server, error) {
	token := opts.Token
	if token == "" && opts.LoadToken != nil {
		stored, err := opts.LoadToken()
		switch {
		case err == nil:
			token = stored
		case errors.Is(err, server.ErrNoToken):
			logger.Warn("no API token stored, the server accepts unauthenticated requests")
		default:
			return nil, fmt.Errorf("failed to load API token: %w", err)
		}
	}

	grammar, err := engine.NewGrammar(cfg)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Options{
		Addr:         cfg.Server.Listen,
		CORS:         cfg.Server.CORS,
		Token:        token,
		FeedMoveRate: cfg.Server.FeedMoveRate,
		DedupeSize:   cfg.Server.DedupeSize,
	}, built.Bus(), logger,
		server.WithGrammar(grammar),
		server.WithStatus(func() interface{} { return built.Status() }),
	)
	if err != nil {
		return nil, err
	}

	if built.Gesture != nil {
		built.Gesture.OnStatus(srv.Feed().PublishStatus)
	}
	built.Executor().OnExecuted(srv.Feed().PublishResult)
	return srv, nil
}
