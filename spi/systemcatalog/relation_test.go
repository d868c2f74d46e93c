package systemcatalog

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func Test_Relation_Canonical_Name(t *testing.T) {
	relation := NewRelation(42, "public", "accounts")
	assert.Equal(t, uint32(42), relation.Id())
	assert.Equal(t, "\"public\".\"accounts\"", relation.CanonicalName())
}

func Test_Columns_Lookup(t *testing.T) {
	columns := Columns{
		NewColumn("id", 1, TypeInfo{Oid: 23, Name: "int4", Kind: BaseKind, Category: Numeric}, -1, false, true),
		NewColumn("name", 2, TypeInfo{Oid: 25, Name: "text", Kind: BaseKind, Category: String}, -1, true, false),
		NewColumn("tags", 3, TypeInfo{Oid: 1009, Name: "_text", Kind: BaseKind, Category: Array}, -1, true, false),
	}

	column, present := columns.Lookup("name")
	assert.True(t, present)
	assert.Equal(t, 2, column.Position())
	assert.Equal(t, "text", column.TypeName())

	_, present = columns.Lookup("secret")
	assert.False(t, present)

	assert.Equal(t, []string{"id", "name", "tags"}, columns.Names())
	assert.Len(t, columns.PrimaryKeyColumns(), 1)
	assert.True(t, columns[2].TypeInfo().IsArray())
}
