// Package oniproto defines the wire messages and service description for
// the oni control daemon's gRPC surface (spec.md §6, SPEC_FULL.md §10.1/2).
//
// There is no .proto file and no protoc-generated code here: the messages
// are plain Go structs carried over a hand-registered JSON codec
// (registered in init) instead of protobuf wire encoding. grpc-go supports
// swapping the wire codec per-call via encoding.RegisterCodec plus
// grpc.CallContentSubtype, which is all a two-message, local-only control
// channel needs — pulling in protoc-gen-go and the full protobuf runtime
// for "quit" and a stubbed search buys nothing a JSON struct doesn't
// already give us.
package oniproto

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// codecName is the registered name passed via grpc.CallContentSubtype on
// the client and matched against the server's accepted content-subtypes.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string { return codecName }

// SearchService mirrors src/cli.rs's SearchService enum (Local,
// LocalMusicbrainz).
type SearchService string

const (
	SearchServiceLocal            SearchService = "local"
	SearchServiceLocalMusicbrainz SearchService = "local-musicbrainz"
)

// SearchRequest is the request message for OniControl.Search.
type SearchRequest struct {
	Query   string        `json:"query"`
	Service SearchService `json:"service"`
}

// SearchResult is one match in a SearchReleaseResponse, shaped after
// musicbrainz_db_plugin's SearchReleaseResponse.
type SearchResult struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// SearchReleaseResponse is the response message for OniControl.Search.
type SearchReleaseResponse struct {
	Results []SearchResult `json:"results"`
}

// QuitRequest is the (empty) request message for OniControl.Quit.
type QuitRequest struct{}

// QuitResponse is the (empty) response message for OniControl.Quit.
type QuitResponse struct{}

// OniControlServer is the server-side interface the oni daemon implements.
type OniControlServer interface {
	Search(context.Context, *SearchRequest) (*SearchReleaseResponse, error)
	Quit(context.Context, *QuitRequest) (*QuitResponse, error)
}

func searchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SearchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OniControlServer).Search(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/musicmaid.oni.OniControl/Search"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OniControlServer).Search(ctx, req.(*SearchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func quitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(QuitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OniControlServer).Quit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/musicmaid.oni.OniControl/Quit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OniControlServer).Quit(ctx, req.(*QuitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-authored grpc.ServiceDesc a protoc-gen-go-grpc
// run would otherwise emit.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "musicmaid.oni.OniControl",
	HandlerType: (*OniControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Search", Handler: searchHandler},
		{MethodName: "Quit", Handler: quitHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "oniproto.proto",
}

// RegisterOniControlServer registers srv's implementation on s.
func RegisterOniControlServer(s *grpc.Server, srv OniControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// OniControlClient is the client-side interface for dialing the daemon.
type OniControlClient interface {
	Search(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchReleaseResponse, error)
	Quit(ctx context.Context, in *QuitRequest, opts ...grpc.CallOption) (*QuitResponse, error)
}

type oniControlClient struct {
	cc grpc.ClientConnInterface
}

// NewOniControlClient wraps cc for calls against the OniControl service.
func NewOniControlClient(cc grpc.ClientConnInterface) OniControlClient {
	return &oniControlClient{cc: cc}
}

func (c *oniControlClient) Search(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchReleaseResponse, error) {
	opts = append(opts, grpc.CallContentSubtype(codecName))
	out := new(SearchReleaseResponse)
	if err := c.cc.Invoke(ctx, "/musicmaid.oni.OniControl/Search", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *oniControlClient) Quit(ctx context.Context, in *QuitRequest, opts ...grpc.CallOption) (*QuitResponse, error) {
	opts = append(opts, grpc.CallContentSubtype(codecName))
	out := new(QuitResponse)
	if err := c.cc.Invoke(ctx, "/musicmaid.oni.OniControl/Quit", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
