package operation

import (
	"encoding/json"
	"testing"

	"github.com/eleven-am/drift/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	post := schema.NewModel("blog", "Post")
	post.AddField(schema.Field{Name: "id", Type: schema.TypeSerial, PrimaryKey: true})
	post.AddField(schema.Field{
		Name: "author_id",
		Type: schema.TypeInteger,
		References: &schema.Reference{
			App: "auth", Model: "User", Column: "id", OnDelete: schema.Cascade,
		},
	})

	captured := schema.Field{Name: "slug", Type: schema.VarChar(80), Unique: true}
	ops := []Operation{
		CreateModel{Model: post},
		RemoveField{ModelKey: schema.NewModelKey("blog", "Post"), FieldName: "slug", Captured: &captured},
		RunSQL{Forward: "UPDATE blog_post SET views = 0", Backward: "SELECT 1"},
		RunCode{ForwardID: "backfill_slugs", BackwardID: "clear_slugs"},
		AddIndex{ModelKey: schema.NewModelKey("blog", "Post"), Index: schema.Index{
			Name: "post_author_idx", Columns: []string{"author_id"}, Type: "btree",
		}},
		CreateExtension{Name: "pg_trgm"},
	}

	raw, err := MarshalList(ops)
	require.NoError(t, err)

	decoded, err := UnmarshalList(raw)
	require.NoError(t, err)
	require.Len(t, decoded, len(ops))

	for i := range ops {
		assert.Equal(t, ops[i].Kind(), decoded[i].Kind(), "op %d kind", i)
	}

	cm := decoded[0].(CreateModel)
	require.NotNil(t, cm.Model.Fields[1].References)
	assert.Equal(t, schema.Cascade, cm.Model.Fields[1].References.OnDelete)

	rf := decoded[1].(RemoveField)
	require.NotNil(t, rf.Captured, "captured definition must survive the round trip")
	assert.True(t, rf.Captured.Equal(captured))

	assert.Equal(t, "backfill_slugs", decoded[3].(RunCode).ForwardID)
	assert.Equal(t, []string{"author_id"}, decoded[4].(AddIndex).Index.Columns)
}

func TestUnmarshal_KindTag(t *testing.T) {
	data := []byte(`{"kind": "rename_field", "model": {"app_label": "auth", "name": "User"}, "old_name": "email", "new_name": "contact_email"}`)

	op, err := Unmarshal(data)
	require.NoError(t, err)

	rf, ok := op.(RenameField)
	require.True(t, ok)
	assert.Equal(t, "email", rf.OldName)
	assert.Equal(t, "contact_email", rf.NewName)
	assert.Equal(t, schema.NewModelKey("auth", "User"), rf.ModelKey)
}

func TestUnmarshal_UnknownKind(t *testing.T) {
	_, err := Unmarshal([]byte(`{"kind": "teleport_table"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport_table")
}

func TestUnmarshal_MissingModel(t *testing.T) {
	_, err := Unmarshal([]byte(`{"kind": "create_model"}`))
	assert.Error(t, err)
}

func TestMarshal_OmitsEmptyBackward(t *testing.T) {
	data, err := Marshal(RunSQL{Forward: "VACUUM"})
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	_, hasBackward := m["backward_sql"]
	assert.False(t, hasBackward)
}
