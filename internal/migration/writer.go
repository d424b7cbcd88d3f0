package migration

import (
	"fmt"
	"sort"

	"github.com/eleven-am/drift/internal/operation"
	"github.com/eleven-am/drift/internal/schema"
)

// GroupByApp splits a detected operation list into per-app groups,
// preserving the detector's operation order inside each group. Sorted
// app labels come back alongside so callers iterate deterministically.
func GroupByApp(ops []operation.Operation) (map[string][]operation.Operation, []string, error) {
	groups := make(map[string][]operation.Operation)
	for _, op := range ops {
		key, ok := subjectOf(op)
		if !ok {
			return nil, nil, fmt.Errorf("operation %q has no model subject and cannot be grouped into an app", op.Kind())
		}
		groups[key.App] = append(groups[key.App], op)
	}

	apps := make([]string, 0, len(groups))
	for app := range groups {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return groups, apps, nil
}

// Assemble builds one migration per app from grouped operations.
// names maps app to the migration name to use. latest maps app to its
// newest existing migration, wired in as a dependency. Cross-app
// foreign keys become dependencies on the referenced app's migration,
// preferring one assembled in the same batch.
func Assemble(groups map[string][]operation.Operation, names map[string]string, latest map[string]Key) ([]*Migration, error) {
	apps := make([]string, 0, len(groups))
	for app := range groups {
		apps = append(apps, app)
	}
	sort.Strings(apps)

	batch := make(map[string]Key, len(apps))
	for _, app := range apps {
		name, ok := names[app]
		if !ok || name == "" {
			return nil, fmt.Errorf("no migration name supplied for app %q", app)
		}
		batch[app] = NewKey(app, name)
	}

	migrations := make([]*Migration, 0, len(apps))
	for _, app := range apps {
		ops := groups[app]
		m := New(app, names[app])
		m.Operations = ops

		deps := make(map[Key]struct{})
		if prev, ok := latest[app]; ok {
			deps[prev] = struct{}{}
		}
		for _, refApp := range referencedApps(ops) {
			if refApp == app {
				continue
			}
			if key, ok := batch[refApp]; ok {
				deps[key] = struct{}{}
			} else if key, ok := latest[refApp]; ok {
				deps[key] = struct{}{}
			}
		}

		for dep := range deps {
			m.Dependencies = append(m.Dependencies, dep)
		}
		sort.Slice(m.Dependencies, func(i, j int) bool {
			return m.Dependencies[i].Less(m.Dependencies[j])
		})

		migrations = append(migrations, m)
	}
	return migrations, nil
}

// subjectOf returns the model an operation targets. Operations without
// a model subject (raw SQL, code, extensions, collations) report false;
// those are authored by hand, never by the detector.
func subjectOf(op operation.Operation) (schema.ModelKey, bool) {
	switch o := op.(type) {
	case operation.CreateModel:
		return o.Model.Key(), true
	case operation.DeleteModel:
		return o.Key, true
	case operation.RenameModel:
		return o.OldKey, true
	case operation.AddField:
		return o.ModelKey, true
	case operation.RemoveField:
		return o.ModelKey, true
	case operation.AlterField:
		return o.ModelKey, true
	case operation.RenameField:
		return o.ModelKey, true
	case operation.AddIndex:
		return o.ModelKey, true
	case operation.RemoveIndex:
		return o.ModelKey, true
	case operation.AddConstraint:
		return o.ModelKey, true
	case operation.RemoveConstraint:
		return o.ModelKey, true
	case operation.RunSQL, operation.RunCode, operation.CreateExtension, operation.DropExtension, operation.CreateCollation:
		return schema.ModelKey{}, false
	default:
		panic(fmt.Sprintf("unhandled operation kind %q", op.Kind()))
	}
}

// referencedApps collects the apps that foreign keys inside ops point
// at, in first-seen order.
func referencedApps(ops []operation.Operation) []string {
	seen := make(map[string]struct{})
	var apps []string
	add := func(ref *schema.Reference) {
		if ref == nil {
			return
		}
		if _, ok := seen[ref.App]; ok {
			return
		}
		seen[ref.App] = struct{}{}
		apps = append(apps, ref.App)
	}

	for _, op := range ops {
		switch o := op.(type) {
		case operation.CreateModel:
			for _, f := range o.Model.Fields {
				add(f.References)
			}
		case operation.AddField:
			add(o.Field.References)
		case operation.AlterField:
			add(o.NewField.References)
		}
	}
	return apps
}
