package version

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func Test_Parse_Postgres_Version(t *testing.T) {
	v, err := ParsePostgresVersion("15.4 (Debian 15.4-1.pgdg120+1)")
	assert.NoError(t, err)
	assert.Equal(t, PostgresVersion(150004), v)
	assert.Equal(t, uint(15), v.Major())
	assert.Equal(t, uint(4), v.Minor())
	assert.Equal(t, "15.4", v.String())
}

func Test_Parse_Postgres_Version_Invalid(t *testing.T) {
	_, err := ParsePostgresVersion("not a version")
	assert.Error(t, err)
}

func Test_Compare_Postgres_Version(t *testing.T) {
	assert.Equal(t, -1, PG_14_VERSION.Compare(PG_15_VERSION))
	assert.Equal(t, 1, PG_15_VERSION.Compare(PG_14_VERSION))
	assert.Equal(t, 0, PG_15_VERSION.Compare(PG_15_VERSION))
	assert.True(t, PG_MIN_VERSION.Compare(PG_14_VERSION) < 0)
}
