package migration

import (
	"testing"

	"github.com/eleven-am/drift/internal/operation"
	"github.com/eleven-am/drift/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByApp(t *testing.T) {
	user := schema.NewModel("auth", "User")
	user.AddField(schema.Field{Name: "id", Type: schema.TypeSerial, PrimaryKey: true})

	ops := []operation.Operation{
		operation.CreateModel{Model: user},
		operation.AddField{ModelKey: schema.NewModelKey("shop", "Order"), Field: schema.Field{Name: "total", Type: schema.Decimal(10, 2)}},
		operation.RenameField{ModelKey: schema.NewModelKey("auth", "User"), OldName: "a", NewName: "b"},
	}

	groups, apps, err := GroupByApp(ops)
	require.NoError(t, err)
	assert.Equal(t, []string{"auth", "shop"}, apps)
	assert.Len(t, groups["auth"], 2)
	assert.Len(t, groups["shop"], 1)

	// Detector order survives inside each group.
	assert.Equal(t, operation.KindCreateModel, groups["auth"][0].Kind())
	assert.Equal(t, operation.KindRenameField, groups["auth"][1].Kind())
}

func TestGroupByApp_RejectsGlobalOps(t *testing.T) {
	_, _, err := GroupByApp([]operation.Operation{operation.RunSQL{Forward: "VACUUM"}})
	assert.Error(t, err)
}

func TestAssemble_WiresDependencies(t *testing.T) {
	user := schema.NewModel("auth", "User")
	user.AddField(schema.Field{Name: "id", Type: schema.TypeSerial, PrimaryKey: true})

	order := schema.NewModel("shop", "Order")
	order.AddField(schema.Field{Name: "id", Type: schema.TypeSerial, PrimaryKey: true})
	order.AddField(schema.Field{
		Name: "user_id", Type: schema.TypeInteger,
		References: &schema.Reference{App: "auth", Model: "User", Column: "id", OnDelete: schema.Cascade},
	})

	groups := map[string][]operation.Operation{
		"auth": {operation.CreateModel{Model: user}},
		"shop": {operation.CreateModel{Model: order}},
	}
	names := map[string]string{
		"auth": "0001_initial",
		"shop": "0001_initial",
	}

	migrations, err := Assemble(groups, names, nil)
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	auth := migrations[0]
	assert.Equal(t, NewKey("auth", "0001_initial"), auth.Key())
	assert.Empty(t, auth.Dependencies)
	assert.True(t, auth.Atomic)

	// shop's FK into auth becomes a dependency on the migration
	// generated in the same batch.
	shop := migrations[1]
	assert.Equal(t, []Key{NewKey("auth", "0001_initial")}, shop.Dependencies)
}

func TestAssemble_DependsOnLatestExisting(t *testing.T) {
	key := schema.NewModelKey("auth", "User")
	groups := map[string][]operation.Operation{
		"auth": {operation.AddField{ModelKey: key, Field: schema.Field{Name: "age", Type: schema.TypeInteger, Nullable: true}}},
	}
	names := map[string]string{"auth": "0002_auto_user_add"}
	latest := map[string]Key{"auth": NewKey("auth", "0001_initial")}

	migrations, err := Assemble(groups, names, latest)
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.Equal(t, []Key{NewKey("auth", "0001_initial")}, migrations[0].Dependencies)
}

func TestAssemble_CrossAppLatestFallback(t *testing.T) {
	order := schema.NewModel("shop", "Order")
	order.AddField(schema.Field{Name: "id", Type: schema.TypeSerial, PrimaryKey: true})
	order.AddField(schema.Field{
		Name: "user_id", Type: schema.TypeInteger,
		References: &schema.Reference{App: "auth", Model: "User", Column: "id"},
	})

	groups := map[string][]operation.Operation{
		"shop": {operation.CreateModel{Model: order}},
	}
	names := map[string]string{"shop": "0001_initial"}
	latest := map[string]Key{"auth": NewKey("auth", "0003_latest")}

	migrations, err := Assemble(groups, names, latest)
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.Equal(t, []Key{NewKey("auth", "0003_latest")}, migrations[0].Dependencies)
}

func TestAssemble_MissingName(t *testing.T) {
	groups := map[string][]operation.Operation{
		"auth": {operation.RenameField{ModelKey: schema.NewModelKey("auth", "User"), OldName: "a", NewName: "b"}},
	}
	_, err := Assemble(groups, map[string]string{}, nil)
	assert.Error(t, err)
}
