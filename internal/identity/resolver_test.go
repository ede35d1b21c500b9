package identity

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
	"github.com/jamesprial/pocketbase-mcp/internal/metrics"
	"github.com/jamesprial/pocketbase-mcp/internal/pocketbase"
	"github.com/jamesprial/pocketbase-mcp/internal/pocketbase/pbtest"
)

func TestResolver_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := pbtest.NewFake("users")
	r := NewResolver(fake, Config{})

	first, err := r.Resolve(ctx, "alice")
	require.NoError(t, err)
	second, err := r.Resolve(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.CreateCount("users"))

	other, err := r.Resolve(ctx, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
	assert.Equal(t, 2, fake.CreateCount("users"))
}

func TestResolver_CreatedRecordShape(t *testing.T) {
	t.Parallel()

	fake := pbtest.NewFake("members")
	var sent map[string]any
	fake.BeforeCreate = func(_ string, data map[string]any) { sent = data }

	r := NewResolver(fake, Config{UsersCollection: "members", LookupField: "ext"})
	_, err := r.Resolve(context.Background(), "alice")
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, "alice", sent["ext"])
	assert.Equal(t, SyntheticEmail("alice"), sent["email"])
	assert.Equal(t, false, sent["emailVisibility"])
	assert.Equal(t, true, sent["verified"])
	assert.Equal(t, sent["password"], sent["passwordConfirm"])
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), sent["password"])
}

func TestResolver_FindsExistingUser(t *testing.T) {
	t.Parallel()

	fake := pbtest.NewFake("users")
	existing := fake.Put("users", pocketbase.Record{"external_id": `we"ird\id`})

	r := NewResolver(fake, Config{})
	uid, err := r.Resolve(context.Background(), `we"ird\id`)
	require.NoError(t, err)
	assert.Equal(t, existing.ID(), uid)
	assert.Equal(t, 0, fake.CreateCount("users"))
}

func TestResolver_LostCreateRaceAdoptsWinner(t *testing.T) {
	t.Parallel()

	fake := pbtest.NewFake("users")
	var winner pocketbase.Record
	fake.BeforeCreate = func(collection string, data map[string]any) {
		// Another process creates the same user first; ours then fails on
		// the unique email.
		winner = fake.Put(collection, pocketbase.Record{"external_id": data["external_id"], "email": data["email"]})
		fake.FailOn("Create", errors.New("email: value must be unique"))
	}

	r := NewResolver(fake, Config{})
	uid, err := r.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, winner.ID(), uid)
	assert.Len(t, fake.Records("users"), 1)
}

func TestResolver_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")

	tests := []struct {
		name     string
		callerID string
		failOn   string
		wantKind error
	}{
		{name: "empty identity", callerID: "", wantKind: internalerrors.ErrValidation},
		{name: "blank identity", callerID: "  ", wantKind: internalerrors.ErrValidation},
		{name: "lookup failure", callerID: "alice", failOn: "GetFirstListItem", wantKind: internalerrors.ErrBackend},
		{name: "create failure", callerID: "alice", failOn: "Create", wantKind: internalerrors.ErrBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := pbtest.NewFake("users")
			if tt.failOn != "" {
				fake.FailOn(tt.failOn, boom)
			}
			r := NewResolver(fake, Config{})

			uid, err := r.Resolve(context.Background(), tt.callerID)
			require.Error(t, err)
			assert.Empty(t, uid)
			assert.Equal(t, tt.wantKind, internalerrors.KindOf(err))
			if tt.failOn != "" {
				assert.ErrorIs(t, err, boom)
			}
			assert.Empty(t, fake.Records("users"))
		})
	}
}

func TestResolver_ConcurrentCallsCreateOnce(t *testing.T) {
	t.Parallel()

	fake := pbtest.NewFake("users")
	release := make(chan struct{})
	var once sync.Once
	entered := make(chan struct{})
	fake.BeforeCreate = func(string, map[string]any) {
		once.Do(func() { close(entered) })
		<-release
	}
	r := NewResolver(fake, Config{})

	const n = 16
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = r.Resolve(context.Background(), "alice")
		}(i)
	}

	<-entered
	// Give the remaining goroutines time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, fake.CreateCount("users"))
}

func TestResolver_CacheAvoidsLookups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := pbtest.NewFake("users")
	r := NewResolver(fake, Config{CacheSize: 8, CacheTTL: time.Minute})

	uid, err := r.Resolve(ctx, "alice")
	require.NoError(t, err)

	fake.FailOn("GetFirstListItem", errors.New("backend down"))
	cached, err := r.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uid, cached)

	r.Forget("alice")
	_, err = r.Resolve(ctx, "alice")
	assert.Error(t, err)
}

func TestResolver_CountsProvisioning(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	r := NewResolver(pbtest.NewFake("users"), Config{}, WithMetrics(m))
	_, err := r.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "alice")
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var value float64
	for _, mf := range families {
		if mf.GetName() == "pbmcp_identities_provisioned_total" {
			value = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, value)
}

func TestSyntheticEmail(t *testing.T) {
	t.Parallel()

	email := SyntheticEmail("alice")
	assert.Regexp(t, `^mcp-[0-9a-f]{24}@users\.mcp\.invalid$`, email)
	assert.Equal(t, email, SyntheticEmail("alice"))
	assert.NotEqual(t, email, SyntheticEmail("bob"))
}
