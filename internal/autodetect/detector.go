package autodetect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eleven-am/drift/internal/operation"
	"github.com/eleven-am/drift/internal/schema"
)

// DefaultRenameThreshold is the minimum similarity score at which a
// delete+create pair collapses into a rename. The scoring weights are
// heuristics, not a contract; both thresholds are configurable on the
// Detector.
const (
	DefaultRenameThreshold      = 0.5
	DefaultFieldRenameThreshold = 0.5
)

// Detector diffs two schema states into an ordered operation list.
type Detector struct {
	RenameThreshold      float64
	FieldRenameThreshold float64
}

func NewDetector() *Detector {
	return &Detector{
		RenameThreshold:      DefaultRenameThreshold,
		FieldRenameThreshold: DefaultFieldRenameThreshold,
	}
}

// Detect computes the operations that transform from into to. Detection
// is total over valid states; malformed input is rejected up front.
//
// Phases run against a working copy of the from-state so each phase sees
// the effects of the previous one: model renames, model deletions (FK
// referrers first), model creations (FK targets first, cycles broken by
// deferring the cyclic FK columns), per-model field diffs, then
// index/constraint diffs.
func (d *Detector) Detect(from, to *schema.State) ([]operation.Operation, error) {
	if err := from.Validate(); err != nil {
		return nil, fmt.Errorf("from state: %w", err)
	}
	if err := to.Validate(); err != nil {
		return nil, fmt.Errorf("to state: %w", err)
	}

	var ops []operation.Operation
	working := from.Clone()

	removed, added := keyDiff(working, to)

	// Phase 1: model renames.
	renames := d.matchRenamedModels(working, to, removed, added)
	for _, pair := range renames {
		op := operation.RenameModel{OldKey: pair.old, NewKey: pair.new}
		ops = append(ops, op)
		next, err := op.ApplyState(working)
		if err != nil {
			return nil, err
		}
		working = next
		removed = deleteKey(removed, pair.old)
		added = deleteKey(added, pair.new)
	}

	// Phase 2: model deletions, referrers before their FK targets.
	for _, key := range deletionOrder(working, removed) {
		captured := working.Model(key).Clone()
		op := operation.DeleteModel{Key: key, Captured: captured}
		ops = append(ops, op)
		next, err := op.ApplyState(working)
		if err != nil {
			return nil, err
		}
		working = next
	}

	// Phase 3: model creations, FK targets before their referrers.
	createOps, err := creationOps(to, added)
	if err != nil {
		return nil, err
	}
	for _, op := range createOps {
		ops = append(ops, op)
		next, err := op.ApplyState(working)
		if err != nil {
			return nil, err
		}
		working = next
	}

	// Phases 4 and 5: field and index/constraint diffs for surviving
	// models, one model at a time so its operations stay contiguous.
	for _, key := range to.SortedKeys() {
		if !working.HasModel(key) {
			continue
		}
		fromModel := working.Model(key)
		toModel := to.Model(key)

		modelOps := d.diffFields(key, fromModel, toModel)
		modelOps = append(modelOps, diffIndexes(key, fromModel, toModel)...)
		modelOps = append(modelOps, diffConstraints(key, fromModel, toModel)...)

		for _, op := range modelOps {
			ops = append(ops, op)
			next, err := op.ApplyState(working)
			if err != nil {
				return nil, err
			}
			working = next
		}
	}

	return ops, nil
}

type renamePair struct {
	old   schema.ModelKey
	new   schema.ModelKey
	score float64
}

// matchRenamedModels pairs removed models with added models by field
// similarity. Pairs are picked greedily from the best score down, so no
// side is matched twice and a better pairing always wins. Ties break on
// lexicographic key order.
func (d *Detector) matchRenamedModels(from, to *schema.State, removed, added []schema.ModelKey) []renamePair {
	var candidates []renamePair
	for _, oldKey := range removed {
		for _, newKey := range added {
			if oldKey.App != newKey.App {
				continue
			}
			score := modelSimilarity(from.Model(oldKey), to.Model(newKey))
			if score >= d.RenameThreshold {
				candidates = append(candidates, renamePair{old: oldKey, new: newKey, score: score})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].old != candidates[j].old {
			return candidates[i].old.Less(candidates[j].old)
		}
		return candidates[i].new.Less(candidates[j].new)
	})

	usedOld := make(map[schema.ModelKey]bool)
	usedNew := make(map[schema.ModelKey]bool)
	var pairs []renamePair
	for _, c := range candidates {
		if usedOld[c.old] || usedNew[c.new] {
			continue
		}
		usedOld[c.old] = true
		usedNew[c.new] = true
		pairs = append(pairs, c)
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].old.Less(pairs[j].old) })
	return pairs
}

// modelSimilarity scores two models on shared field names, discounted by
// type disagreement among the shared names. 1.0 means identical field
// sets, 0.0 means nothing in common.
func modelSimilarity(from, to *schema.Model) float64 {
	if len(from.Fields) == 0 || len(to.Fields) == 0 {
		return 0
	}

	common := 0
	typeMatch := 0
	for _, f := range from.Fields {
		other := to.Field(f.Name)
		if other == nil {
			continue
		}
		common++
		if other.Type == f.Type {
			typeMatch++
		}
	}
	if common == 0 {
		return 0
	}

	larger := len(from.Fields)
	if len(to.Fields) > larger {
		larger = len(to.Fields)
	}
	overlap := float64(common) / float64(larger)
	agreement := float64(typeMatch) / float64(common)

	return overlap * (0.5 + 0.5*agreement)
}

// deletionOrder sorts the removed models so that a model holding an FK
// to another removed model is deleted before its target.
func deletionOrder(state *schema.State, removed []schema.ModelKey) []schema.ModelKey {
	order, _ := topoSortByFK(state, removed)
	// topoSortByFK yields targets first; deletions need referrers first.
	reversed := make([]schema.ModelKey, len(order))
	for i, key := range order {
		reversed[len(order)-1-i] = key
	}
	return reversed
}

// creationOps emits CreateModel operations in FK dependency order. When
// new models reference each other cyclically, they are created without
// the cyclic FK fields and those fields follow as an AddField batch.
func creationOps(to *schema.State, added []schema.ModelKey) ([]operation.Operation, error) {
	order, acyclic := topoSortByFK(to, added)
	if acyclic {
		ops := make([]operation.Operation, 0, len(order))
		for _, key := range order {
			ops = append(ops, operation.CreateModel{Model: to.Model(key).Clone()})
		}
		return ops, nil
	}

	// FK cycle among the new models: strip every FK field that points at
	// another new model, create everything, then add the FKs back.
	addedSet := make(map[schema.ModelKey]bool, len(added))
	for _, key := range added {
		addedSet[key] = true
	}

	var ops []operation.Operation
	var deferred []operation.AddField
	sorted := append([]schema.ModelKey(nil), added...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	for _, key := range sorted {
		m := to.Model(key).Clone()
		kept := m.Fields[:0]
		for _, f := range m.Fields {
			if f.References != nil && addedSet[f.References.ModelKey()] {
				deferred = append(deferred, operation.AddField{ModelKey: key, Field: f.Clone()})
				continue
			}
			kept = append(kept, f)
		}
		m.Fields = kept
		ops = append(ops, operation.CreateModel{Model: m})
	}
	for _, op := range deferred {
		ops = append(ops, op)
	}
	return ops, nil
}

// topoSortByFK orders the given keys so FK targets precede referrers.
// Only edges between the given keys count. Returns false when a cycle
// prevents a complete order; the partial order still covers all keys in
// deterministic order.
func topoSortByFK(state *schema.State, keys []schema.ModelKey) ([]schema.ModelKey, bool) {
	inSet := make(map[schema.ModelKey]bool, len(keys))
	for _, key := range keys {
		inSet[key] = true
	}

	sorted := append([]schema.ModelKey(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	visited := make(map[schema.ModelKey]bool)
	visiting := make(map[schema.ModelKey]bool)
	var order []schema.ModelKey
	acyclic := true

	var visit func(schema.ModelKey)
	visit = func(key schema.ModelKey) {
		if visited[key] {
			return
		}
		if visiting[key] {
			acyclic = false
			return
		}
		visiting[key] = true
		m := state.Model(key)
		if m != nil {
			for _, f := range m.Fields {
				if f.References == nil {
					continue
				}
				target := f.References.ModelKey()
				if target != key && inSet[target] {
					visit(target)
				}
			}
		}
		visiting[key] = false
		visited[key] = true
		order = append(order, key)
	}

	for _, key := range sorted {
		visit(key)
	}
	return order, acyclic
}

// diffFields computes the field-level operations for one model: renames
// first, then removals, additions and alterations.
func (d *Detector) diffFields(key schema.ModelKey, from, to *schema.Model) []operation.Operation {
	var ops []operation.Operation

	var removed, added []string
	for _, f := range from.Fields {
		if !to.HasField(f.Name) {
			removed = append(removed, f.Name)
		}
	}
	for _, f := range to.Fields {
		if !from.HasField(f.Name) {
			added = append(added, f.Name)
		}
	}

	renamedOld := make(map[string]bool)
	renamedNew := make(map[string]bool)
	for _, pair := range d.matchRenamedFields(from, to, removed, added) {
		ops = append(ops, operation.RenameField{ModelKey: key, OldName: pair.oldName, NewName: pair.newName})
		renamedOld[pair.oldName] = true
		renamedNew[pair.newName] = true
	}

	for _, name := range removed {
		if renamedOld[name] {
			continue
		}
		captured := from.Field(name).Clone()
		ops = append(ops, operation.RemoveField{ModelKey: key, FieldName: name, Captured: &captured})
	}

	for _, name := range added {
		if renamedNew[name] {
			continue
		}
		ops = append(ops, operation.AddField{ModelKey: key, Field: to.Field(name).Clone()})
	}

	for _, f := range to.Fields {
		old := from.Field(f.Name)
		if old == nil || renamedNew[f.Name] {
			continue
		}
		if !old.Equal(f) {
			ops = append(ops, operation.AlterField{ModelKey: key, OldField: old.Clone(), NewField: f.Clone()})
		}
	}

	return ops
}

type fieldRenamePair struct {
	oldName string
	newName string
	score   float64
}

// matchRenamedFields pairs removed fields with added fields of the same
// shape. Scoring is positional proximity; a removed field that reappears
// at the same position under a new name is the strongest candidate.
func (d *Detector) matchRenamedFields(from, to *schema.Model, removed, added []string) []fieldRenamePair {
	size := len(from.Fields)
	if len(to.Fields) > size {
		size = len(to.Fields)
	}
	if size == 0 {
		return nil
	}

	var candidates []fieldRenamePair
	for _, oldName := range removed {
		oldField := from.Field(oldName)
		for _, newName := range added {
			newField := to.Field(newName)
			if !oldField.SameShape(*newField) {
				continue
			}
			distance := from.FieldIndex(oldName) - to.FieldIndex(newName)
			if distance < 0 {
				distance = -distance
			}
			score := 1.0 - float64(distance)/float64(size)
			if score >= d.FieldRenameThreshold {
				candidates = append(candidates, fieldRenamePair{oldName: oldName, newName: newName, score: score})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].oldName != candidates[j].oldName {
			return candidates[i].oldName < candidates[j].oldName
		}
		return candidates[i].newName < candidates[j].newName
	})

	usedOld := make(map[string]bool)
	usedNew := make(map[string]bool)
	var pairs []fieldRenamePair
	for _, c := range candidates {
		if usedOld[c.oldName] || usedNew[c.newName] {
			continue
		}
		usedOld[c.oldName] = true
		usedNew[c.newName] = true
		pairs = append(pairs, c)
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].oldName < pairs[j].oldName })
	return pairs
}

func diffIndexes(key schema.ModelKey, from, to *schema.Model) []operation.Operation {
	var ops []operation.Operation
	for _, idx := range from.Indexes {
		match := to.Index(idx.Name)
		if match != nil && idx.Equal(*match) {
			continue
		}
		captured := idx.Clone()
		ops = append(ops, operation.RemoveIndex{ModelKey: key, IndexName: idx.Name, Captured: &captured})
	}
	for _, idx := range to.Indexes {
		match := from.Index(idx.Name)
		if match != nil && idx.Equal(*match) {
			continue
		}
		ops = append(ops, operation.AddIndex{ModelKey: key, Index: idx.Clone()})
	}
	return ops
}

func diffConstraints(key schema.ModelKey, from, to *schema.Model) []operation.Operation {
	var ops []operation.Operation
	for _, c := range from.Constraints {
		match := to.Constraint(c.Name)
		if match != nil && c.Equal(*match) {
			continue
		}
		captured := c.Clone()
		ops = append(ops, operation.RemoveConstraint{ModelKey: key, ConstraintName: c.Name, Captured: &captured})
	}
	for _, c := range to.Constraints {
		match := from.Constraint(c.Name)
		if match != nil && c.Equal(*match) {
			continue
		}
		ops = append(ops, operation.AddConstraint{ModelKey: key, Constraint: c.Clone()})
	}
	return ops
}

// keyDiff returns the keys only in from (removed) and only in to
// (added), each in lexicographic order.
func keyDiff(from, to *schema.State) (removed, added []schema.ModelKey) {
	for _, key := range from.SortedKeys() {
		if !to.HasModel(key) {
			removed = append(removed, key)
		}
	}
	for _, key := range to.SortedKeys() {
		if !from.HasModel(key) {
			added = append(added, key)
		}
	}
	return removed, added
}

func deleteKey(keys []schema.ModelKey, key schema.ModelKey) []schema.ModelKey {
	for i := range keys {
		if keys[i] == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}

// SuggestName derives a short migration name from the dominant operation.
func SuggestName(ops []operation.Operation) string {
	if len(ops) == 0 {
		return "auto"
	}

	verb, subject := describeOp(ops[0])
	if len(ops) > 1 {
		// Mixed changes get a generic name unless every operation shares
		// the same verb and subject.
		for _, op := range ops[1:] {
			v, s := describeOp(op)
			if v != verb || s != subject {
				return "auto"
			}
		}
	}
	if subject == "" {
		return "auto_" + verb
	}
	return fmt.Sprintf("auto_%s_%s", subject, verb)
}

func describeOp(op operation.Operation) (verb, subject string) {
	switch o := op.(type) {
	case operation.CreateModel:
		return "create", strings.ToLower(o.Model.Name)
	case operation.DeleteModel:
		return "delete", strings.ToLower(o.Key.Name)
	case operation.RenameModel:
		return "rename", strings.ToLower(o.NewKey.Name)
	case operation.AddField:
		return "add", strings.ToLower(o.ModelKey.Name)
	case operation.RemoveField:
		return "remove", strings.ToLower(o.ModelKey.Name)
	case operation.AlterField:
		return "alter", strings.ToLower(o.ModelKey.Name)
	case operation.RenameField:
		return "rename", strings.ToLower(o.ModelKey.Name)
	case operation.AddIndex:
		return "index", strings.ToLower(o.ModelKey.Name)
	case operation.RemoveIndex:
		return "index", strings.ToLower(o.ModelKey.Name)
	case operation.AddConstraint:
		return "constraint", strings.ToLower(o.ModelKey.Name)
	case operation.RemoveConstraint:
		return "constraint", strings.ToLower(o.ModelKey.Name)
	case operation.RunSQL:
		return "sql", ""
	case operation.RunCode:
		return "code", ""
	case operation.CreateExtension:
		return "extension", strings.ToLower(o.Name)
	case operation.DropExtension:
		return "extension", strings.ToLower(o.Name)
	case operation.CreateCollation:
		return "collation", strings.ToLower(o.Name)
	default:
		panic(fmt.Sprintf("autodetect: unhandled variant %T in describeOp", op))
	}
}
