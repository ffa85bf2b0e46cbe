package oni

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/master-kurosawa/music-maid/internal/oniproto"
)

// Dial connects to a running daemon over SocketName, matching
// src/oni/client.rs's use of the same abstract socket address.
func Dial(ctx context.Context) (*grpc.ClientConn, oniproto.OniControlClient, error) {
	conn, err := grpc.NewClient(
		"unix:"+SocketName,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, nil, err
	}
	return conn, oniproto.NewOniControlClient(conn), nil
}

// Search dials the daemon and issues a single Search RPC.
func Search(ctx context.Context, query string, service oniproto.SearchService) (*oniproto.SearchReleaseResponse, error) {
	conn, client, err := Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return client.Search(ctx, &oniproto.SearchRequest{Query: query, Service: service})
}
