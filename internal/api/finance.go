package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "finkeeper.v1.Finance"

// FullMethod returns the gRPC method path for a Finance RPC.
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// FinanceServer is the server API for the Finance service.
type FinanceServer interface {
	AddEntry(context.Context, *AddEntryRequest) (*AddEntryResponse, error)
	UpdateEntry(context.Context, *UpdateEntryRequest) (*UpdateEntryResponse, error)
	DeleteEntry(context.Context, *DeleteEntryRequest) (*DeleteEntryResponse, error)
	ListEntries(context.Context, *ListEntriesRequest) (*ListEntriesResponse, error)
	CreateAccount(context.Context, *CreateAccountRequest) (*CreateAccountResponse, error)
	ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error)
	RecomputeBalances(context.Context, *RecomputeBalancesRequest) (*RecomputeBalancesResponse, error)
}

// UnimplementedFinanceServer answers every RPC with codes.Unimplemented.
// Embed it to stay forward compatible when RPCs are added.
type UnimplementedFinanceServer struct{}

func (UnimplementedFinanceServer) AddEntry(context.Context, *AddEntryRequest) (*AddEntryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddEntry not implemented")
}
func (UnimplementedFinanceServer) UpdateEntry(context.Context, *UpdateEntryRequest) (*UpdateEntryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateEntry not implemented")
}
func (UnimplementedFinanceServer) DeleteEntry(context.Context, *DeleteEntryRequest) (*DeleteEntryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteEntry not implemented")
}
func (UnimplementedFinanceServer) ListEntries(context.Context, *ListEntriesRequest) (*ListEntriesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListEntries not implemented")
}
func (UnimplementedFinanceServer) CreateAccount(context.Context, *CreateAccountRequest) (*CreateAccountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateAccount not implemented")
}
func (UnimplementedFinanceServer) ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAccounts not implemented")
}
func (UnimplementedFinanceServer) RecomputeBalances(context.Context, *RecomputeBalancesRequest) (*RecomputeBalancesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RecomputeBalances not implemented")
}

// unary builds a MethodDesc that decodes Req, runs the interceptor chain and calls the typed handler.
func unary[Req, Resp any](method string, call func(FinanceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(FinanceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(FinanceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FinanceServiceDesc describes the Finance service for grpc.Server registration.
var FinanceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FinanceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AddEntry", FinanceServer.AddEntry),
		unary("UpdateEntry", FinanceServer.UpdateEntry),
		unary("DeleteEntry", FinanceServer.DeleteEntry),
		unary("ListEntries", FinanceServer.ListEntries),
		unary("CreateAccount", FinanceServer.CreateAccount),
		unary("ListAccounts", FinanceServer.ListAccounts),
		unary("RecomputeBalances", FinanceServer.RecomputeBalances),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "finkeeper/v1/finance",
}

// RegisterFinanceServer registers srv on s.
func RegisterFinanceServer(s grpc.ServiceRegistrar, srv FinanceServer) {
	s.RegisterService(&FinanceServiceDesc, srv)
}

// FinanceClient is the client API for the Finance service.
type FinanceClient interface {
	AddEntry(ctx context.Context, in *AddEntryRequest, opts ...grpc.CallOption) (*AddEntryResponse, error)
	UpdateEntry(ctx context.Context, in *UpdateEntryRequest, opts ...grpc.CallOption) (*UpdateEntryResponse, error)
	DeleteEntry(ctx context.Context, in *DeleteEntryRequest, opts ...grpc.CallOption) (*DeleteEntryResponse, error)
	ListEntries(ctx context.Context, in *ListEntriesRequest, opts ...grpc.CallOption) (*ListEntriesResponse, error)
	CreateAccount(ctx context.Context, in *CreateAccountRequest, opts ...grpc.CallOption) (*CreateAccountResponse, error)
	ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error)
	RecomputeBalances(ctx context.Context, in *RecomputeBalancesRequest, opts ...grpc.CallOption) (*RecomputeBalancesResponse, error)
}

type financeClient struct {
	cc grpc.ClientConnInterface
}

// NewFinanceClient wraps a connection; every call uses the JSON codec.
func NewFinanceClient(cc grpc.ClientConnInterface) FinanceClient {
	return &financeClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *financeClient) AddEntry(ctx context.Context, in *AddEntryRequest, opts ...grpc.CallOption) (*AddEntryResponse, error) {
	return invoke[AddEntryResponse](ctx, c.cc, "AddEntry", in, opts)
}

func (c *financeClient) UpdateEntry(ctx context.Context, in *UpdateEntryRequest, opts ...grpc.CallOption) (*UpdateEntryResponse, error) {
	return invoke[UpdateEntryResponse](ctx, c.cc, "UpdateEntry", in, opts)
}

func (c *financeClient) DeleteEntry(ctx context.Context, in *DeleteEntryRequest, opts ...grpc.CallOption) (*DeleteEntryResponse, error) {
	return invoke[DeleteEntryResponse](ctx, c.cc, "DeleteEntry", in, opts)
}

func (c *financeClient) ListEntries(ctx context.Context, in *ListEntriesRequest, opts ...grpc.CallOption) (*ListEntriesResponse, error) {
	return invoke[ListEntriesResponse](ctx, c.cc, "ListEntries", in, opts)
}

func (c *financeClient) CreateAccount(ctx context.Context, in *CreateAccountRequest, opts ...grpc.CallOption) (*CreateAccountResponse, error) {
	return invoke[CreateAccountResponse](ctx, c.cc, "CreateAccount", in, opts)
}

func (c *financeClient) ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error) {
	return invoke[ListAccountsResponse](ctx, c.cc, "ListAccounts", in, opts)
}

func (c *financeClient) RecomputeBalances(ctx context.Context, in *RecomputeBalancesRequest, opts ...grpc.CallOption) (*RecomputeBalancesResponse, error) {
	return invoke[RecomputeBalancesResponse](ctx, c.cc, "RecomputeBalances", in, opts)
}
