package allowlist

import (
	"context"
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/spi/encoding"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

type fakeRow struct {
	relationId uint32
	position   int32
	column     string
}

type fakeReader struct {
	rows              []fakeRow
	mappingRelationId uint32
	missing           bool
	readErr           error
	resolveErr        error
	replicaIdentity   string
}

func (f *fakeReader) ReadColumnMappings(
	_ context.Context, _ string, cb func(relationId uint32, position int32, column string) error,
) error {

	if f.readErr != nil {
		return f.readErr
	}
	for _, row := range f.rows {
		if err := cb(row.relationId, row.position, row.column); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeReader) ResolveMappingRelationId(
	_ context.Context, _ string,
) (uint32, bool, error) {

	if f.resolveErr != nil {
		return 0, false, f.resolveErr
	}
	return f.mappingRelationId, !f.missing, nil
}

func (f *fakeReader) ReadReplicaIdentity(
	_ context.Context, _ uint32,
) (string, error) {

	if f.replicaIdentity == "" {
		return ReplicaIdentityFull, nil
	}
	return f.replicaIdentity, nil
}

func Test_Load_Preserves_Order_And_Duplicates(t *testing.T) {
	reader := &fakeReader{
		mappingRelationId: 16384,
		rows: []fakeRow{
			{42, 1, "id"},
			{42, 2, "name"},
			{42, 3, "name"},
			{43, 1, "created_at"},
		},
	}

	a, err := Load(context.Background(), reader, "col_mapps")
	require.Nil(t, err)

	columns, present := a.Columns(42)
	assert.True(t, present)
	assert.Equal(t, []string{"id", "name", "name"}, columns)

	columns, present = a.Columns(43)
	assert.True(t, present)
	assert.Equal(t, []string{"created_at"}, columns)

	_, present = a.Columns(44)
	assert.False(t, present)

	assert.Equal(t, 2, a.Len())
	assert.True(t, a.IsMappingRelation(16384))
	assert.False(t, a.IsMappingRelation(42))
}

func Test_Load_Missing_Mapping_Table(t *testing.T) {
	a, err := Load(context.Background(), &fakeReader{missing: true}, "col_mapps")
	require.Nil(t, err)
	assert.Equal(t, 0, a.Len())
	assert.False(t, a.IsMappingRelation(0))
}

func Test_Load_Store_Unavailable(t *testing.T) {
	_, err := Load(context.Background(), &fakeReader{
		mappingRelationId: 16384,
		readErr:           errors.New("permission denied for table col_mapps"),
	}, "col_mapps")
	assert.True(t, encoding.IsKind(err, encoding.StoreUnavailable))

	_, err = Load(context.Background(), &fakeReader{
		resolveErr: errors.New("connection refused"),
	}, "col_mapps")
	assert.True(t, encoding.IsKind(err, encoding.StoreUnavailable))
}

func Test_Remove_First_Occurrence(t *testing.T) {
	a := New()
	a.Append(42, "id")
	a.Append(42, "name")
	a.Append(42, "name")

	assert.True(t, a.Remove(42, "name"))
	columns, _ := a.Columns(42)
	assert.Equal(t, []string{"id", "name"}, columns)

	assert.False(t, a.Remove(42, "secret"))
	assert.False(t, a.Remove(99, "id"))

	assert.True(t, a.Remove(42, "id"))
	assert.True(t, a.Remove(42, "name"))
	_, present := a.Columns(42)
	assert.False(t, present)
}

func Test_Apply_Change_From_Mapping_Table(t *testing.T) {
	a := New()
	a.Append(42, "id")

	touched := a.ApplyChange(pgtypes.Insert, nil, pgtypes.Tuple{
		"reloid": int64(42), "ordinal_position": int32(2), "column_name": "name",
	})
	assert.Equal(t, []uint32{42}, touched)
	columns, _ := a.Columns(42)
	assert.Equal(t, []string{"id", "name"}, columns)

	touched = a.ApplyChange(pgtypes.Update,
		pgtypes.Tuple{"reloid": int64(42), "column_name": "id"},
		pgtypes.Tuple{"reloid": int64(43), "column_name": "id"},
	)
	assert.ElementsMatch(t, []uint32{42, 43}, touched)
	columns, _ = a.Columns(42)
	assert.Equal(t, []string{"name"}, columns)
	columns, _ = a.Columns(43)
	assert.Equal(t, []string{"id"}, columns)

	touched = a.ApplyChange(pgtypes.Delete, pgtypes.Tuple{"reloid": uint32(43), "column_name": "id"}, nil)
	assert.Equal(t, []uint32{43}, touched)
	_, present := a.Columns(43)
	assert.False(t, present)

	// key-only old image can't be mapped back to an entry
	touched = a.ApplyChange(pgtypes.Delete, pgtypes.Tuple{"reloid": int64(42)}, nil)
	assert.Empty(t, touched)
}

func Test_Apply_Change_Inserts_At_Ordinal_Position(t *testing.T) {
	a := New()
	a.Append(42, "id")
	a.Append(42, "name")

	touched := a.ApplyChange(pgtypes.Insert, nil, pgtypes.Tuple{
		"reloid": int64(42), "ordinal_position": int32(0), "column_name": "email",
	})
	assert.Equal(t, []uint32{42}, touched)
	columns, _ := a.Columns(42)
	assert.Equal(t, []string{"email", "id", "name"}, columns)

	a.ApplyChange(pgtypes.Insert, nil, pgtypes.Tuple{
		"reloid": int64(42), "ordinal_position": int32(1), "column_name": "created_at",
	})
	columns, _ = a.Columns(42)
	assert.Equal(t, []string{"email", "id", "created_at", "name"}, columns)
}

func Test_Apply_Change_Update_Without_Old_Image_Moves_Entry(t *testing.T) {
	a := New()
	a.Append(42, "id")
	a.Append(42, "name")

	touched := a.ApplyChange(pgtypes.Update, nil, pgtypes.Tuple{
		"reloid": int64(42), "ordinal_position": int32(5), "column_name": "id",
	})
	assert.Equal(t, []uint32{42}, touched)
	columns, _ := a.Columns(42)
	assert.Equal(t, []string{"name", "id"}, columns)

	// a repeated insert of an existing name doesn't duplicate it
	a.ApplyChange(pgtypes.Insert, nil, pgtypes.Tuple{
		"reloid": int64(42), "ordinal_position": int32(1), "column_name": "id",
	})
	columns, _ = a.Columns(42)
	assert.Equal(t, []string{"id", "name"}, columns)
}

func Test_Load_Orders_By_Position(t *testing.T) {
	reader := &fakeReader{
		mappingRelationId: 16384,
		rows: []fakeRow{
			{42, 3, "name"},
			{42, 1, "id"},
			{42, 2, "email"},
		},
	}

	a, err := Load(context.Background(), reader, "col_mapps")
	require.Nil(t, err)
	columns, _ := a.Columns(42)
	assert.Equal(t, []string{"id", "email", "name"}, columns)
}

func Test_Load_Mapping_Table_Without_Full_Identity(t *testing.T) {
	reader := &fakeReader{
		mappingRelationId: 16384,
		replicaIdentity:   "d",
		rows:              []fakeRow{{42, 1, "id"}},
	}

	a, err := Load(context.Background(), reader, "col_mapps")
	require.Nil(t, err)
	columns, present := a.Columns(42)
	assert.True(t, present)
	assert.Equal(t, []string{"id"}, columns)
}
