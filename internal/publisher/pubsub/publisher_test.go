package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	sitepubsub "github.com/zdub15/agent-website-generator/internal/publisher/pubsub"
)

func newFakeClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishSendsJSONWithEventAttribute(t *testing.T) {
	ctx := context.Background()
	client, srv := newFakeClient(t)

	_, err := client.CreateTopic(ctx, "site-events")
	require.NoError(t, err)

	pub, err := sitepubsub.NewFromClient(ctx, client, "site-events")
	require.NoError(t, err)
	defer pub.Stop()

	id, err := pub.Publish(ctx, "site.created", map[string]string{"siteId": "abc"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "site.created", msgs[0].Attributes[sitepubsub.EventAttribute])
	var body map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	assert.Equal(t, "abc", body["siteId"])
}

func TestNewFromClientRequiresTopic(t *testing.T) {
	ctx := context.Background()
	client, _ := newFakeClient(t)

	_, err := sitepubsub.NewFromClient(ctx, client, "missing")
	require.ErrorContains(t, err, "does not exist")

	_, err = sitepubsub.NewFromClient(ctx, nil, "missing")
	require.Error(t, err)
}

func TestPublishWithoutTopic(t *testing.T) {
	t.Parallel()

	_, err := sitepubsub.New(nil).Publish(context.Background(), "site.created", nil)
	require.Error(t, err)
}
