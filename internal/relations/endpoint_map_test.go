package relations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unitofwork/pkg/domain"
)

func TestGetOrLoadCachesEndPoints(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order := oid("Order", "a")
	f.relateOrder(order, oid("Customer", "c"))

	first, err := f.m.GetOrLoad(ctx, epid(order, orderCustomer))
	require.NoError(t, err)
	second, err := f.m.GetOrLoad(ctx, epid(order, orderCustomer))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, f.loader.loads, 1)
	assert.Equal(t, []domain.RelationEndPointID{epid(order, orderCustomer)}, f.host.registered)
}

func TestGetOrLoadErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown property", func(t *testing.T) {
		f := newFixture()
		_, err := f.m.GetOrLoad(ctx, epid(oid("Order", "a"), "Order.Nope"))
		assert.ErrorIs(t, err, domain.ErrUnknownProperty)
	})
	t.Run("loader failure", func(t *testing.T) {
		f := newFixture()
		boom := errors.New("boom")
		f.loader.failed = boom
		_, err := f.m.GetOrLoad(ctx, epid(oid("Order", "a"), orderCustomer))
		assert.ErrorIs(t, err, boom)
	})
	t.Run("loader did not register", func(t *testing.T) {
		f := newFixture()
		f.loader.skip = true
		_, err := f.m.GetOrLoad(ctx, epid(oid("Customer", "c"), customerOrders))
		assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	})
	t.Run("zero object yields null end point", func(t *testing.T) {
		f := newFixture()
		ep, err := f.m.GetOrLoad(ctx, epid(domain.ObjectID{}, customerOrders))
		require.NoError(t, err)
		assert.True(t, ep.IsNull())
		assert.Empty(t, f.loader.loads)
	})
}

func TestGetOppositeEndPoint(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order, customer := oid("Order", "a"), oid("Customer", "c")
	f.relateOrder(order, customer)
	ref := f.reference(t, order, orderCustomer)

	opposite, err := f.m.GetOppositeEndPoint(ctx, ref, customer)
	require.NoError(t, err)
	assert.Equal(t, epid(customer, customerOrders), opposite.ID())

	official := f.reference(t, order, orderOfficial)
	anonymous, err := f.m.GetOppositeEndPoint(ctx, official, oid("Official", "o"))
	require.NoError(t, err)
	assert.True(t, anonymous.IsNull())
	assert.True(t, anonymous.Definition().IsAnonymous())
}

func TestAddRejectsNullAndDuplicates(t *testing.T) {
	f := newFixture()
	def, _ := f.m.Schema().Definition(orderCustomer)
	assert.ErrorIs(t, f.m.Add(NewNullEndPoint(def)), domain.ErrInvalidOperation)

	id := epid(oid("Order", "a"), orderCustomer)
	_, err := f.m.RegisterReference(id, domain.ObjectID{})
	require.NoError(t, err)
	_, err = f.m.RegisterReference(id, domain.ObjectID{})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = f.m.RegisterCollection(id, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation, "cardinality must match")
	assert.Equal(t, 1, f.m.Len())
}

func TestMapCommitDropsDeletedObjects(t *testing.T) {
	f := newFixture()
	a, b, c := oid("Order", "a"), oid("Order", "b"), oid("Customer", "c")
	f.relateOrder(a, c)

	refA := f.reference(t, a, orderCustomer)
	refA.setOppositeObjectID(domain.ObjectID{})
	_ = f.reference(t, b, orderCustomer)

	require.NoError(t, f.m.Commit([]domain.ObjectID{b}))

	_, ok := f.m.Get(epid(b, orderCustomer))
	assert.False(t, ok)
	assert.False(t, refA.HasChanged())
	assert.True(t, refA.OriginalOppositeObjectID().IsZero())
	assert.Len(t, f.m.EndPointsOf(a), 1)
}

func TestEndPointsAreOrdered(t *testing.T) {
	f := newFixture()
	for _, v := range []string{"c", "a", "b"} {
		_, err := f.m.RegisterReference(epid(oid("Order", v), orderCustomer), domain.ObjectID{})
		require.NoError(t, err)
	}
	eps := f.m.EndPoints()
	require.Len(t, eps, 3)
	assert.Equal(t, "a", eps[0].ObjectID().Value)
	assert.Equal(t, "c", eps[2].ObjectID().Value)
}

func TestRemoveDetachesCollection(t *testing.T) {
	f := newFixture()
	coll, err := f.m.RegisterCollection(epid(oid("Customer", "c"), customerOrders), []domain.ObjectID{oid("Order", "a")})
	require.NoError(t, err)
	require.True(t, coll.Collection().IsAttached())

	f.m.UnregisterObject(oid("Customer", "c"))
	assert.False(t, coll.Collection().IsAttached())
	assert.Equal(t, 0, f.m.Len())
}
