package operation

import (
	"context"
	"testing"

	"github.com/eleven-am/drift/internal/schema"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseState(t *testing.T) *schema.State {
	t.Helper()
	state := schema.NewState()
	user := schema.NewModel("auth", "User")
	user.AddField(schema.Field{Name: "id", Type: schema.TypeSerial, PrimaryKey: true})
	user.AddField(schema.Field{Name: "email", Type: schema.VarChar(255), Unique: true})
	require.NoError(t, state.AddModel(user))
	return state
}

func statesEqual(t *testing.T, a, b *schema.State) {
	t.Helper()
	require.Equal(t, a.Len(), b.Len())
	for _, key := range a.SortedKeys() {
		ma, mb := a.Model(key), b.Model(key)
		require.NotNil(t, mb, "model %s missing", key)
		require.Equal(t, len(ma.Fields), len(mb.Fields), "field count on %s", key)
		for i := range ma.Fields {
			assert.True(t, ma.Fields[i].Equal(mb.Fields[i]),
				"field %s.%s differs", key, ma.Fields[i].Name)
		}
	}
}

// Applying an operation and then its reverse must restore the original
// state for every reversible operation kind.
func TestApplyReverse_InverseLaw(t *testing.T) {
	post := schema.NewModel("blog", "Post")
	post.AddField(schema.Field{Name: "id", Type: schema.TypeSerial, PrimaryKey: true})
	post.AddField(schema.Field{Name: "title", Type: schema.VarChar(200)})

	captured := schema.Field{Name: "email", Type: schema.VarChar(255), Unique: true}
	userKey := schema.NewModelKey("auth", "User")

	tests := []struct {
		name string
		op   Operation
	}{
		{"create model", CreateModel{Model: post}},
		{"add field", AddField{ModelKey: userKey, Field: schema.Field{Name: "age", Type: schema.TypeInteger, Nullable: true}}},
		{"remove field with captured def", RemoveField{ModelKey: userKey, FieldName: "email", Captured: &captured}},
		{"rename model", RenameModel{OldKey: userKey, NewKey: schema.NewModelKey("auth", "Person")}},
		{"rename field", RenameField{ModelKey: userKey, OldName: "email", NewName: "contact_email"}},
		{"alter field", AlterField{
			ModelKey: userKey,
			OldField: schema.Field{Name: "email", Type: schema.VarChar(255), Unique: true},
			NewField: schema.Field{Name: "email", Type: schema.TypeText, Unique: true},
		}},
		{"add index", AddIndex{ModelKey: userKey, Index: schema.Index{Name: "user_email_idx", Columns: []string{"email"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := baseState(t)

			after, err := tt.op.ApplyState(before)
			require.NoError(t, err)

			rev, ok := tt.op.Reverse()
			require.True(t, ok, "operation should be reversible")

			restored, err := rev.ApplyState(after)
			require.NoError(t, err)
			statesEqual(t, before, restored)
		})
	}
}

func TestDeleteModel_InverseLaw(t *testing.T) {
	before := baseState(t)
	captured := before.Model(schema.NewModelKey("auth", "User")).Clone()

	op := DeleteModel{Key: schema.NewModelKey("auth", "User"), Captured: captured}
	after, err := op.ApplyState(before)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Len())

	rev, ok := op.Reverse()
	require.True(t, ok)
	restored, err := rev.ApplyState(after)
	require.NoError(t, err)
	statesEqual(t, before, restored)
}

func TestIrreversibleOperations(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
	}{
		{"remove field without captured def", RemoveField{ModelKey: schema.NewModelKey("auth", "User"), FieldName: "email"}},
		{"delete model without captured def", DeleteModel{Key: schema.NewModelKey("auth", "User")}},
		{"run sql without backward", RunSQL{Forward: "UPDATE auth_user SET email = lower(email)"}},
		{"remove index without captured def", RemoveIndex{ModelKey: schema.NewModelKey("auth", "User"), IndexName: "user_email_idx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.op.Reverse()
			assert.False(t, ok)
		})
	}
}

func TestApplyState_NeverMutatesPrior(t *testing.T) {
	before := baseState(t)
	op := AddField{ModelKey: schema.NewModelKey("auth", "User"), Field: schema.Field{Name: "age", Type: schema.TypeInteger, Nullable: true}}

	_, err := op.ApplyState(before)
	require.NoError(t, err)

	m := before.Model(schema.NewModelKey("auth", "User"))
	assert.Len(t, m.Fields, 2, "prior state must stay untouched")
}

func TestApplyState_Errors(t *testing.T) {
	state := baseState(t)

	t.Run("add field to unknown model", func(t *testing.T) {
		op := AddField{ModelKey: schema.NewModelKey("blog", "Post"), Field: schema.Field{Name: "x", Type: schema.TypeText}}
		_, err := op.ApplyState(state)
		assert.ErrorIs(t, err, schema.ErrInvalidState)
	})

	t.Run("duplicate field", func(t *testing.T) {
		op := AddField{ModelKey: schema.NewModelKey("auth", "User"), Field: schema.Field{Name: "email", Type: schema.TypeText}}
		_, err := op.ApplyState(state)
		assert.ErrorIs(t, err, schema.ErrInvalidState)
	})

	t.Run("delete unknown model", func(t *testing.T) {
		op := DeleteModel{Key: schema.NewModelKey("blog", "Post")}
		_, err := op.ApplyState(state)
		assert.ErrorIs(t, err, schema.ErrInvalidState)
	})
}

func TestRunSQL_StatePassthrough(t *testing.T) {
	before := baseState(t)
	op := RunSQL{Forward: "CREATE INDEX CONCURRENTLY user_email_idx ON auth_user (email)", Backward: "DROP INDEX user_email_idx"}

	after, err := op.ApplyState(before)
	require.NoError(t, err)
	statesEqual(t, before, after)

	rev, ok := op.Reverse()
	require.True(t, ok)
	assert.Equal(t, "DROP INDEX user_email_idx", rev.(RunSQL).Forward)
}

func TestApply_ThreadsState(t *testing.T) {
	state := schema.NewState()
	user := schema.NewModel("auth", "User")
	user.AddField(schema.Field{Name: "id", Type: schema.TypeSerial, PrimaryKey: true})

	ops := []Operation{
		CreateModel{Model: user},
		AddField{ModelKey: schema.NewModelKey("auth", "User"), Field: schema.Field{Name: "email", Type: schema.VarChar(255)}},
		RenameField{ModelKey: schema.NewModelKey("auth", "User"), OldName: "email", NewName: "contact"},
	}

	final, err := Apply(state, ops)
	require.NoError(t, err)

	m := final.Model(schema.NewModelKey("auth", "User"))
	require.NotNil(t, m)
	assert.True(t, m.HasField("contact"))
	assert.False(t, m.HasField("email"))
	assert.Equal(t, 0, state.Len(), "input state must stay empty")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register("backfill_emails", nil)
	assert.Error(t, err, "nil funcs are rejected")

	called := false
	require.NoError(t, reg.Register("backfill_emails", func(_ context.Context, _ sqlx.ExtContext) error {
		called = true
		return nil
	}))

	fn, err := reg.Resolve("backfill_emails")
	require.NoError(t, err)
	require.NoError(t, fn(context.Background(), nil))
	assert.True(t, called)

	err = reg.Register("backfill_emails", func(_ context.Context, _ sqlx.ExtContext) error { return nil })
	assert.Error(t, err, "re-registration is rejected")

	_, err = reg.Resolve("missing")
	assert.Error(t, err)
}
