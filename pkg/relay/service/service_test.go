package service

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/logger"
	"codeuchat/pkg/relay"
	"codeuchat/pkg/telemetry"
)

var (
	teamA   = ids.ID(11)
	teamB   = ids.ID(22)
	secretA = relay.Secret{0xaa, 0x01}
	secretB = relay.Secret{0xbb, 0x02}
)

func startService(t *testing.T, cfg Config) (*relay.Remote, *BundleStore) {
	t.Helper()
	st, err := OpenBundleStore(filepath.Join(t.TempDir(), "bundles"), 1, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := New(st, Teams{teamA: secretA, teamB: secretB}, cfg, telemetry.NewRegistry(), logger.Discard())
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: svc.Handler()}
	go srv.Serve(ln)
	t.Cleanup(func() { ln.Close() })

	remote := relay.NewRemote("relay.test", relay.WithDial(func(string) (net.Conn, error) {
		return ln.Dial()
	}))
	return remote, st
}

func component(id ids.ID, text string) relay.Component {
	return relay.Pack(id, text, time.UnixMilli(1500000000000+int64(id)))
}

func TestWriteThenReadInOrder(t *testing.T) {
	remote, st := startService(t, Config{})
	ctx := context.Background()

	for i := ids.ID(1); i <= 5; i++ {
		require.NoError(t, remote.Write(ctx, teamA, secretA, component(100, "ann"), component(200, "room"), component(300+i, "msg")))
	}

	all, err := remote.Read(ctx, teamB, secretB, ids.Null, 32)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Less(t, uint64(all[i-1].ID), uint64(all[i].ID))
	}
	assert.Equal(t, teamA, all[0].Team)
	assert.Equal(t, ids.ID(301), all[0].Message.ID)
	assert.Equal(t, "room", all[0].Conversation.Text)

	page, err := remote.Read(ctx, teamB, secretB, all[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].ID, page[0].ID)
	assert.Equal(t, all[3].ID, page[1].ID)

	rest, err := remote.Read(ctx, teamB, secretB, all[4].ID, 32)
	require.NoError(t, err)
	assert.Empty(t, rest)

	n, err := st.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestRejectsBadCredentials(t *testing.T) {
	remote, _ := startService(t, Config{})
	ctx := context.Background()

	err := remote.Write(ctx, teamA, secretB, component(1, "a"), component(2, "b"), component(3, "c"))
	assert.True(t, errors.Is(err, relay.ErrUnauthorized), "got %v", err)

	_, err = remote.Read(ctx, ids.ID(99), secretA, ids.Null, 10)
	assert.True(t, errors.Is(err, relay.ErrUnauthorized), "got %v", err)
}

func TestRateLimitPerTeam(t *testing.T) {
	remote, _ := startService(t, Config{RPS: 0.001, Burst: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := remote.Read(ctx, teamA, secretA, ids.Null, 1)
		require.NoError(t, err)
	}
	_, err := remote.Read(ctx, teamA, secretA, ids.Null, 1)
	assert.True(t, errors.Is(err, relay.ErrRateLimited), "got %v", err)

	// another team has its own bucket
	_, err = remote.Read(ctx, teamB, secretB, ids.Null, 1)
	require.NoError(t, err)
}

func TestRemoteHonoursContext(t *testing.T) {
	remote, _ := startService(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := remote.Read(ctx, teamA, secretA, ids.Null, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadTeams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teams.yaml")
	require.NoError(t, os.WriteFile(path, []byte("teams:\n  - id: 11\n    secret: aa01\n    name: west\n"), 0o600))
	teams, err := LoadTeams(path)
	require.NoError(t, err)
	assert.True(t, teams.Authenticate(teamA, secretA))
	assert.False(t, teams.Authenticate(teamA, secretB))

	require.NoError(t, os.WriteFile(path, []byte("teams:\n  - id: 11\n    secret: nothex\n"), 0o600))
	_, err = LoadTeams(path)
	assert.Error(t, err)
}

func TestLimiterSweep(t *testing.T) {
	p := newLimiterPool(1, 1)
	p.allow(teamA)
	assert.Equal(t, 0, p.sweep(time.Now()))
	assert.Equal(t, 1, p.sweep(time.Now().Add(time.Hour)))
}
