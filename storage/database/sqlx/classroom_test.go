package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
)

func TestOrderBy(t *testing.T) {
	tests := []struct {
		name    string
		cols    []string
		order   string
		want    string
		wantErr bool
	}{
		{name: "none", cols: classroom.ClassColumns, want: " ORDER BY id ASC"},
		{name: "nome asc", cols: classroom.ClassColumns, order: "nome.asc", want: " ORDER BY nome ASC, id ASC"},
		{name: "created_at desc", cols: classroom.ActivityColumns, order: "created_at.desc", want: " ORDER BY created_at DESC, id ASC"},
		{name: "unknown column", cols: classroom.ClassColumns, order: "nome;DROP TABLE turmas", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := orderBy(tt.cols, core.ParseOrdering(tt.order))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActivityWhere(t *testing.T) {
	classID := int64(42)
	w := activityWhere(classroom.ActivityFilter{ClassID: &classID, OwnerID: "p1"})
	assert.Equal(t, " WHERE turma_id = ? AND turma_id IN (SELECT id FROM turmas WHERE professor_id::text = ?)", w.String())
	assert.Equal(t, []interface{}{classID, "p1"}, w.args)

	assert.Equal(t, "", classWhere(classroom.ClassFilter{}).String())
}
