// Package oni implements the control daemon (spec.md §6, SPEC_FULL.md
// §10.1/2): a gRPC server over an abstract Unix socket that can answer a
// stubbed Search RPC and shut itself down on Quit, mirroring
// src/oni/server.rs's MyOniControl. It does not talk to MusicBrainz or any
// other network service — that crosses into the network-search Non-goal.
package oni

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/master-kurosawa/music-maid/internal/oniproto"
	"github.com/master-kurosawa/music-maid/internal/store"
	"github.com/master-kurosawa/music-maid/mbz"
)

// SocketName is the abstract Unix socket address the daemon listens on.
// The leading "@" is grpc-go/net's convention for the Linux abstract
// namespace (translated to a leading NUL byte), matching
// std::os::linux::net::SocketAddrExt's use in src/oni/server.rs.
const SocketName = "@musicmaid_oni"

// Server is the oni daemon's gRPC server.
type Server struct {
	grpcServer *grpc.Server
	log        *zap.SugaredLogger
	store      *store.Store // nil when running without a store (Search then only serves Local)
}

// New builds a Server. s may be nil: Search then answers only the Local
// service, never LocalMusicbrainz. Call Serve to start listening.
func New(log *zap.SugaredLogger, s *store.Store) *Server {
	srv := &Server{log: log, store: s}
	srv.grpcServer = grpc.NewServer()
	oniproto.RegisterOniControlServer(srv.grpcServer, srv)
	return srv
}

// Serve listens on SocketName and blocks until ctx is canceled or Quit is
// called, then stops gracefully.
func (s *Server) Serve(ctx context.Context) error {
	lis, err := net.Listen("unix", SocketName)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.GracefulStop()
		<-errc
		return ctx.Err()
	case err := <-errc:
		return err
	}
}

// Search answers the Search RPC. It never reaches MusicBrainz or any other
// network service: for SearchServiceLocal it is a stub, and for
// SearchServiceLocalMusicbrainz it reads whatever MusicBrainz Picard tags
// were already embedded in the locally-ingested file's comments (query is
// the file's path) rather than querying musicbrainz.org.
func (s *Server) Search(ctx context.Context, req *oniproto.SearchRequest) (*oniproto.SearchReleaseResponse, error) {
	s.log.Infow("search request", "query", req.Query, "service", req.Service)

	if req.Service != oniproto.SearchServiceLocalMusicbrainz || s.store == nil {
		return &oniproto.SearchReleaseResponse{Results: nil}, nil
	}

	_, comments, err := s.store.LoadVorbisByPath(req.Query)
	if err != nil {
		return &oniproto.SearchReleaseResponse{Results: nil}, nil
	}
	info := mbz.Extract(comments)
	if info.Artist == "" && info.Album == "" {
		return &oniproto.SearchReleaseResponse{Results: nil}, nil
	}
	return &oniproto.SearchReleaseResponse{Results: []oniproto.SearchResult{
		{Title: info.Album, Artist: info.Artist},
	}}, nil
}

// Quit stops the server gracefully after replying, mirroring
// MyOniControl::quit.
func (s *Server) Quit(ctx context.Context, req *oniproto.QuitRequest) (*oniproto.QuitResponse, error) {
	go s.grpcServer.GracefulStop()
	return &oniproto.QuitResponse{}, nil
}
