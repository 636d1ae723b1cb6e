// Package grpcserver exposes the fin-keeper gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/fin-keeper/internal/api"
	"github.com/and161185/fin-keeper/internal/convert"
	"github.com/and161185/fin-keeper/internal/errs"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/service"
)

// Server wires services into gRPC handlers.
type Server struct {
	api.UnimplementedFinanceServer
	entries  service.EntryService
	accounts service.AccountService
}

// New constructs a gRPC server with injected services.
func New(entries service.EntryService, accounts service.AccountService) *Server {
	return &Server{entries: entries, accounts: accounts}
}

// toStatus maps service sentinels to gRPC codes.
func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, errs.ErrValidation):
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, op)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, op)
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}

func userFrom(ctx context.Context) (uuid.UUID, error) {
	id, ok := UserIDFromCtx(ctx)
	if !ok || id == uuid.Nil {
		return uuid.Nil, status.Error(codes.Unauthenticated, "no auth")
	}
	return id, nil
}

func collectionFrom(name string) (model.Collection, error) {
	c := model.Collection(name)
	if !c.Valid() {
		return "", status.Errorf(codes.InvalidArgument, "unknown collection %q", name)
	}
	return c, nil
}

// --- Entries ---

// AddEntry stores a new income or expense.
func (s *Server) AddEntry(ctx context.Context, req *api.AddEntryRequest) (*api.AddEntryResponse, error) {
	userID, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	c, err := collectionFrom(req.Collection)
	if err != nil {
		return nil, err
	}
	e, err := convert.FromWireEntry(c, req.Entry)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad entry: %v", err)
	}
	out, err := s.entries.Add(ctx, userID, e)
	if err != nil {
		return nil, toStatus("add entry", err)
	}
	return &api.AddEntryResponse{Entry: convert.ToWireEntry(out)}, nil
}

// UpdateEntry replaces an existing entry.
func (s *Server) UpdateEntry(ctx context.Context, req *api.UpdateEntryRequest) (*api.UpdateEntryResponse, error) {
	userID, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	c, err := collectionFrom(req.Collection)
	if err != nil {
		return nil, err
	}
	e, err := convert.FromWireEntry(c, req.Entry)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad entry: %v", err)
	}
	out, err := s.entries.Update(ctx, userID, e)
	if err != nil {
		return nil, toStatus("update entry", err)
	}
	return &api.UpdateEntryResponse{Entry: convert.ToWireEntry(out)}, nil
}

// DeleteEntry removes an entry.
func (s *Server) DeleteEntry(ctx context.Context, req *api.DeleteEntryRequest) (*api.DeleteEntryResponse, error) {
	userID, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	c, err := collectionFrom(req.Collection)
	if err != nil {
		return nil, err
	}
	id, err := uuid.FromString(req.ID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad id")
	}
	if err := s.entries.Delete(ctx, userID, c, id); err != nil {
		return nil, toStatus("delete entry", err)
	}
	return &api.DeleteEntryResponse{}, nil
}

// ListEntries returns a collection, newest first.
func (s *Server) ListEntries(ctx context.Context, req *api.ListEntriesRequest) (*api.ListEntriesResponse, error) {
	userID, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	c, err := collectionFrom(req.Collection)
	if err != nil {
		return nil, err
	}
	es, err := s.entries.List(ctx, userID, c)
	if err != nil {
		return nil, toStatus("list entries", err)
	}
	return &api.ListEntriesResponse{Entries: convert.ToWireEntries(es)}, nil
}

// --- Accounts ---

// CreateAccount opens an account.
func (s *Server) CreateAccount(ctx context.Context, req *api.CreateAccountRequest) (*api.CreateAccountResponse, error) {
	userID, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	a, err := convert.FromWireAccount(req.Account)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad account: %v", err)
	}
	out, err := s.accounts.Create(ctx, userID, a)
	if err != nil {
		return nil, toStatus("create account", err)
	}
	return &api.CreateAccountResponse{Account: convert.ToWireAccount(out)}, nil
}

// ListAccounts returns the caller's accounts.
func (s *Server) ListAccounts(ctx context.Context, _ *api.ListAccountsRequest) (*api.ListAccountsResponse, error) {
	userID, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	as, err := s.accounts.List(ctx, userID)
	if err != nil {
		return nil, toStatus("list accounts", err)
	}
	return &api.ListAccountsResponse{Accounts: convert.ToWireAccounts(as)}, nil
}

// RecomputeBalances rebuilds every balance from stored entries.
func (s *Server) RecomputeBalances(ctx context.Context, _ *api.RecomputeBalancesRequest) (*api.RecomputeBalancesResponse, error) {
	userID, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	as, err := s.accounts.RecomputeBalances(ctx, userID)
	if err != nil {
		return nil, toStatus("recompute balances", err)
	}
	return &api.RecomputeBalancesResponse{Accounts: convert.ToWireAccounts(as)}, nil
}
