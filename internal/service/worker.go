package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/data"
	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/errors"
)

const tokenBytes = 32

// WorkerServiceOptions groups dependencies for WorkerService.
type WorkerServiceOptions struct {
	Workers core.WorkerRepository // Required: worker registry
	Keys    core.APIKeyRepository // Optional: provider credential lookup
	// CloudAPIKey is the privileged credential that registers built-in
	// cloud-scoped workers. Empty disables the cloud join path.
	CloudAPIKey string
	Logger      *slog.Logger // Optional: structured logger
}

// WorkerService manages the worker fleet: joins, heartbeats, and listings.
type WorkerService struct {
	workers     core.WorkerRepository
	keys        core.APIKeyRepository
	cloudAPIKey string
	logger      *slog.Logger
}

// NewWorkerService constructs a new WorkerService.
func NewWorkerService(opts WorkerServiceOptions) (*WorkerService, error) {
	if opts.Workers == nil {
		return nil, stderrors.New("WorkerRepository is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "worker_service")
	}
	return &WorkerService{
		workers:     opts.Workers,
		keys:        opts.Keys,
		cloudAPIKey: opts.CloudAPIKey,
		logger:      logger,
	}, nil
}

// MustNewWorkerService constructs a new WorkerService and panics on error.
func MustNewWorkerService(opts WorkerServiceOptions) *WorkerService {
	svc, err := NewWorkerService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create WorkerService: %v", err))
	}
	return svc
}

// Join exchanges an API key for a fresh worker identity and bearer token.
// Every join creates a new worker row; a restarted worker is a new worker.
func (s *WorkerService) Join(ctx context.Context, req *model.JoinRequest) (*model.JoinResponse, error) {
	if req == nil {
		return nil, errors.Validation("join request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, err.Error())
	}

	params, err := s.resolveCredential(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}
	params.Tool = req.Tool

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate worker token: %w", err)
	}
	params.Token = token

	worker, err := s.workers.Create(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("register worker: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "worker joined",
			"worker_id", worker.ID,
			"type", worker.Type,
			"scope", worker.Scope,
		)
	}
	return &model.JoinResponse{WorkerID: worker.ID, Token: token}, nil
}

// resolveCredential matches the presented key against the cloud credential
// first, then every active provider hash. Unauthorized on no match.
func (s *WorkerService) resolveCredential(ctx context.Context, apiKey string) (*core.CreateWorkerParams, error) {
	if s.cloudAPIKey != "" &&
		subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.cloudAPIKey)) == 1 {
		return &core.CreateWorkerParams{
			Type:  model.WorkerTypeBuiltIn,
			Scope: model.WorkerScopeCloud,
		}, nil
	}

	if s.keys != nil {
		records, err := s.keys.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("list api keys: %w", err)
		}
		for _, rec := range records {
			if bcrypt.CompareHashAndPassword([]byte(rec.KeyHash), []byte(apiKey)) == nil {
				return &core.CreateWorkerParams{
					Type:        rec.Kind,
					Scope:       rec.Scope,
					WorkspaceID: rec.WorkspaceID,
				}, nil
			}
		}
	}
	return nil, errors.Unauthorized("invalid api key")
}

// Heartbeat refreshes the worker's liveness timestamp.
func (s *WorkerService) Heartbeat(ctx context.Context, token string, at time.Time) error {
	ok, err := s.workers.Touch(ctx, token, at)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if !ok {
		// Expired by the reconciler or never registered. The worker must
		// re-join; its in-flight work was already released.
		return errors.Unauthorized("unknown worker token")
	}
	return nil
}

// Resolve returns the worker holding the bearer token.
func (s *WorkerService) Resolve(ctx context.Context, token string) (*model.Worker, error) {
	worker, err := s.workers.GetByToken(ctx, token)
	if stderrors.Is(err, data.ErrWorkerNotFound) {
		return nil, errors.Unauthorized("unknown worker token")
	}
	if err != nil {
		return nil, fmt.Errorf("resolve worker: %w", err)
	}
	return worker, nil
}

// List returns workers visible to the workspace with live job counts.
func (s *WorkerService) List(
	ctx context.Context,
	opts model.WorkerListOptions,
) ([]*model.WorkerWithJobCount, error) {
	workers, err := s.workers.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return workers, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
