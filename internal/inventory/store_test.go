package inventory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{
		DSN:          filepath.Join(t.TempDir(), "inventory.db"),
		DefaultQuota: 2,
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInstanceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst := &types.Instance{
		InstanceID: "i-1",
		UserID:     "owner-1",
		SystemName: "Design-PC",
		Region:     "us-east-1",
		SubnetID:   "subnet-a",
		Status:     types.InstanceRunning,
	}
	require.NoError(t, store.PutInstance(ctx, inst))

	got, err := store.GetInstance(ctx, "owner-1", "i-1")
	require.NoError(t, err)
	assert.Equal(t, "Design-PC", got.SystemName)
	assert.Equal(t, "design-pc", got.SystemNameKey)

	exists, err := store.SystemNameExists(ctx, "owner-1", "DESIGN-pc")
	require.NoError(t, err)
	assert.True(t, exists, "names compare case-insensitively")

	exists, err = store.SystemNameExists(ctx, "owner-2", "design-pc")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.UpdateInstanceStatus(ctx, "owner-1", "i-1", types.InstanceStopped))
	got, err = store.FindInstance(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, types.InstanceStopped, got.Status)

	require.NoError(t, store.DeleteInstance(ctx, "owner-1", "i-1"))
	_, err = store.GetInstance(ctx, "owner-1", "i-1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInstanceNotFound))

	err = store.UpdateInstanceStatus(ctx, "owner-1", "i-1", types.InstanceRunning)
	assert.True(t, errors.IsNotFound(err))
}

func TestDuplicateSystemNameRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutInstance(ctx, &types.Instance{InstanceID: "i-1", UserID: "o", SystemName: "pc", Region: "r"}))
	err := store.PutInstance(ctx, &types.Instance{InstanceID: "i-2", UserID: "o", SystemName: "PC", Region: "r"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeRecordExists), "got %v", err)
}

func TestAdjustSubnetClampsAtZero(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AdjustSubnet(ctx, "us-east-1", "subnet-a", 0))
	require.NoError(t, store.AdjustSubnet(ctx, "us-east-1", "subnet-b", 1))
	require.NoError(t, store.AdjustSubnet(ctx, "us-east-1", "subnet-b", 1))
	require.NoError(t, store.AdjustSubnet(ctx, "us-east-1", "subnet-a", -1))

	subnets, err := store.ListSubnets(ctx, "us-east-1")
	require.NoError(t, err)
	require.Len(t, subnets, 2)
	assert.Equal(t, "subnet-a", subnets[0].SubnetID, "least loaded first")
	assert.Equal(t, 0, subnets[0].VMCount)
	assert.Equal(t, 2, subnets[1].VMCount)

	require.NoError(t, store.AdjustSubnet(ctx, "us-east-1", "subnet-b", -5))
	subnets, err = store.ListSubnets(ctx, "us-east-1")
	require.NoError(t, err)
	for _, s := range subnets {
		assert.Equal(t, 0, s.VMCount)
	}
}

func TestAdjustSubnetConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AdjustSubnet(ctx, "r", "s", 0))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.AdjustSubnet(ctx, "r", "s", 1))
		}()
	}
	wg.Wait()

	subnets, err := store.ListSubnets(ctx, "r")
	require.NoError(t, err)
	require.Len(t, subnets, 1)
	assert.Equal(t, 10, subnets[0].VMCount)
}

func TestQuota(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	q, err := store.GetQuota(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 2, q.Quota, "default quota")
	assert.Equal(t, 0, q.UsedCount)

	require.NoError(t, store.AdjustQuotaUsage(ctx, "owner-1", 1))
	require.NoError(t, store.AdjustQuotaUsage(ctx, "owner-1", 1))
	q, err = store.GetQuota(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 2, q.UsedCount)

	require.NoError(t, store.AdjustQuotaUsage(ctx, "owner-1", -3))
	q, err = store.GetQuota(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 0, q.UsedCount)

	require.NoError(t, store.PutQuota(ctx, &types.UserQuota{UserID: "owner-1", Quota: 5, UsedCount: 1}))
	q, err = store.GetQuota(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 5, q.Quota)
}

func TestTrackingOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertTracking(ctx, &types.TrackingEntry{
		ResourceID: "i-1", ResourceType: types.ResourceInstance, Status: types.InstanceRunning, SubnetID: "subnet-a",
	}))
	require.NoError(t, store.UpsertTracking(ctx, &types.TrackingEntry{
		ResourceID: "i-1", ResourceType: types.ResourceInstance, Status: types.InstanceTerminated, SubnetID: "subnet-a",
	}))

	entry, err := store.GetTracking(ctx, "i-1", types.ResourceInstance)
	require.NoError(t, err)
	assert.Equal(t, types.InstanceTerminated, entry.Status)
	assert.Equal(t, "subnet-a", entry.SubnetID)
}

func TestAssignmentsAndSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutAssignment(ctx, &types.Assignment{OwnerID: "o", InstanceID: "i-1", MemberID: "m"}))
	a, err := store.GetAssignment(ctx, "o", "i-1")
	require.NoError(t, err)
	assert.Equal(t, "m", a.MemberID)

	require.NoError(t, store.DeleteAssignment(ctx, "o", "i-1"))
	_, err = store.GetAssignment(ctx, "o", "i-1")
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, store.PutSession(ctx, &types.SessionRecord{SessionID: "s1", UserID: "o", InstanceID: "i-1"}))
	require.NoError(t, store.PutSession(ctx, &types.SessionRecord{SessionID: "s2", UserID: "o", InstanceID: "i-1"}))
	require.NoError(t, store.PutSession(ctx, &types.SessionRecord{SessionID: "s3", UserID: "o", InstanceID: "i-2"}))

	n, err := store.DeleteSessions(ctx, "o", "i-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestKeyMaterialAndStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutKeyMaterial(ctx, &types.KeyMaterial{InstanceID: "i-1", UserID: "o", KeyName: "k", PrivateKey: "pem"}))
	km, err := store.GetKeyMaterial(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, "pem", km.PrivateKey)
	require.NoError(t, store.DeleteKeyMaterial(ctx, "i-1"))

	require.NoError(t, store.PutStatus(ctx, &types.StatusRecord{InstanceID: "i-1", UserID: "o", Status: types.InstanceRunning}))
	st, err := store.GetStatus(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, types.InstanceRunning, st.Status)
	require.NoError(t, store.DeleteStatus(ctx, "i-1"))

	_, err = store.GetStatus(ctx, "i-1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeRecordNotFound))

	assert.NoError(t, store.Ping(ctx))
}

func TestListInstancesAndAssignments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"i-2", "i-1"} {
		require.NoError(t, store.PutInstance(ctx, &types.Instance{
			InstanceID: id, UserID: "o", SystemName: id, Region: "us-east-1", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.PutInstance(ctx, &types.Instance{InstanceID: "i-9", UserID: "other", SystemName: "x", Region: "us-east-1"}))

	list, err := store.ListInstances(ctx, "o")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "i-2", list[0].InstanceID, "oldest first")

	require.NoError(t, store.PutAssignment(ctx, &types.Assignment{OwnerID: "o", InstanceID: "i-2", MemberID: "m1"}))
	require.NoError(t, store.PutAssignment(ctx, &types.Assignment{OwnerID: "o", InstanceID: "i-1", MemberID: "m2"}))

	assignments, err := store.ListAssignments(ctx, "o")
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "i-1", assignments[0].InstanceID)

	none, err := store.ListAssignments(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
