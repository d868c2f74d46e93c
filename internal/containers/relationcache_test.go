package containers

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

type cachedRelation struct {
	id   uint32
	name string
}

func Test_RelationCache_Set_LowerBound_Update(
	t *testing.T,
) {

	r1 := &cachedRelation{id: 10256, name: "accounts"}
	r2 := &cachedRelation{id: 12000, name: "orders"}
	r3 := &cachedRelation{id: 9999, name: "col_mapps"}

	cache := NewRelationCache[*cachedRelation]()

	cache.Set(r1.id, r1)
	back, present := cache.Get(r1.id)
	assert.True(t, present)
	assert.Equal(t, r1, back)

	cache.Set(r2.id, r2)
	back, present = cache.Get(r1.id)
	assert.True(t, present)
	assert.Equal(t, r1, back)
	back, present = cache.Get(r2.id)
	assert.True(t, present)
	assert.Equal(t, r2, back)

	cache.Set(r3.id, r3)
	back, present = cache.Get(r1.id)
	assert.True(t, present)
	assert.Equal(t, r1, back)
	back, present = cache.Get(r2.id)
	assert.True(t, present)
	assert.Equal(t, r2, back)
	back, present = cache.Get(r3.id)
	assert.True(t, present)
	assert.Equal(t, r3, back)

	assert.Equal(t, 3, cache.Len())
}

func Test_RelationCache_Out_Of_Bounds(
	t *testing.T,
) {

	cache := NewRelationCache[string]()

	_, present := cache.Get(42)
	assert.False(t, present)

	cache.Set(100, "foo")
	_, present = cache.Get(99)
	assert.False(t, present)
	_, present = cache.Get(101)
	assert.False(t, present)
	_, present = cache.Get(0)
	assert.False(t, present)

	cache.Set(0, "invalid")
	assert.Equal(t, 1, cache.Len())
}

func Test_RelationCache_Overwrite_And_Delete(
	t *testing.T,
) {

	cache := NewRelationCache[string]()
	cache.Set(42, "v1")
	cache.Set(42, "v2")
	assert.Equal(t, 1, cache.Len())

	value, present := cache.Get(42)
	assert.True(t, present)
	assert.Equal(t, "v2", value)

	assert.True(t, cache.Delete(42))
	assert.False(t, cache.Delete(42))
	assert.False(t, cache.Delete(7))
	_, present = cache.Get(42)
	assert.False(t, present)
	assert.Equal(t, 0, cache.Len())
}

func Test_RelationCache_ForEach_In_Order(
	t *testing.T,
) {

	cache := NewRelationCache[string]()
	cache.Set(50, "b")
	cache.Set(40, "a")
	cache.Set(60, "c")

	oids := make([]uint32, 0)
	values := make([]string, 0)
	cache.ForEach(func(oid uint32, value string) {
		oids = append(oids, oid)
		values = append(values, value)
	})
	assert.Equal(t, []uint32{40, 50, 60}, oids)
	assert.Equal(t, []string{"a", "b", "c"}, values)
}
