package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/microact/internal/ir"
	"github.com/roach88/microact/internal/micro"
)

// Catalog is a compiled set of action declarations keyed by type.
type Catalog struct {
	specs map[string]*ir.ActionSpec
	// FileCount is the number of .cue files the catalog was loaded from.
	FileCount int
}

// NewCatalog builds a catalog from already compiled specs.
// A later spec with the same type replaces an earlier one.
func NewCatalog(specs ...*ir.ActionSpec) *Catalog {
	c := &Catalog{specs: make(map[string]*ir.ActionSpec, len(specs))}
	for _, s := range specs {
		c.specs[s.Type] = s
	}
	return c
}

// LoadCatalog loads every .cue file in dir as one CUE instance and compiles
// each entry under the top-level "action" struct.
//
// All compile errors are collected; the returned catalog holds the entries
// that compiled. A nil catalog means the directory could not be loaded.
func LoadCatalog(dir string) (*Catalog, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("catalog directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("catalog directory: not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scan catalog directory: %w", err)}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded from %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{formatCUEError(inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	cat, errs := CompileCatalog(value)
	cat.FileCount = len(files)
	return cat, errs
}

// CompileCatalog compiles the "action" struct of a CUE value.
// It never returns a nil catalog.
func CompileCatalog(v cue.Value) (*Catalog, []error) {
	cat := NewCatalog()

	actionsVal := v.LookupPath(cue.ParsePath("action"))
	if !actionsVal.Exists() {
		return cat, []error{&CompileError{
			Field:   "action",
			Message: "no actions declared",
			Pos:     v.Pos(),
		}}
	}

	iter, err := actionsVal.Fields()
	if err != nil {
		return cat, []error{formatCUEError(err)}
	}

	var errs []error
	for iter.Next() {
		spec, err := CompileAction(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, ve := range Validate(spec) {
			errs = append(errs, ve)
		}
		cat.specs[spec.Type] = spec
	}

	return cat, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Types returns the declared action types in sorted order.
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.specs))
	for t := range c.specs {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Lookup returns the ActionSpec for an action type.
func (c *Catalog) Lookup(actionType string) (*ir.ActionSpec, bool) {
	s, ok := c.specs[actionType]
	return s, ok
}

// Len returns the number of declared actions.
func (c *Catalog) Len() int {
	return len(c.specs)
}

// UnknownActionError reports an action type missing from the catalog.
type UnknownActionError struct {
	Type string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("action type %q is not declared in the catalog", e.Type)
}

// PayloadError reports a payload that does not match its declaration.
type PayloadError struct {
	Type   string
	Errors []ir.ValidationError
}

func (e *PayloadError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("action %s: %s", e.Type, e.Errors[0].Error())
	}
	return fmt.Sprintf("action %s: %s (and %d more)", e.Type, e.Errors[0].Error(), len(e.Errors)-1)
}

// Build creates an action of a declared type. The payload is checked
// against the declaration; micro types come back tagged.
func (c *Catalog) Build(actionType string, payload ir.Object) (*ir.Action, error) {
	spec, ok := c.specs[actionType]
	if !ok {
		return nil, &UnknownActionError{Type: actionType}
	}
	if errs := spec.CheckPayload(payload); len(errs) > 0 {
		return nil, &PayloadError{Type: actionType, Errors: errs}
	}

	a := ir.NewAction(actionType, payload.Clone())
	if spec.Micro {
		micro.Tag(a)
	}
	return a, nil
}

// Creator returns an action creator for a declared type. Micro types get a
// creator wrapped with micro.Micro.
//
// The creator takes an optional payload (ir.Object or map[string]any) and
// panics if it does not match the declaration. Use Build to get an error
// instead.
func (c *Catalog) Creator(actionType string) (micro.Creator, error) {
	spec, ok := c.specs[actionType]
	if !ok {
		return nil, &UnknownActionError{Type: actionType}
	}

	create := func(args ...any) *ir.Action {
		payload, err := payloadArg(args)
		if err != nil {
			panic(fmt.Sprintf("creator %s: %v", actionType, err))
		}
		if errs := spec.CheckPayload(payload); len(errs) > 0 {
			panic((&PayloadError{Type: actionType, Errors: errs}).Error())
		}
		return ir.NewAction(actionType, payload)
	}

	if spec.Micro {
		return micro.Micro(create), nil
	}
	return create, nil
}

func payloadArg(args []any) (ir.Object, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if len(args) > 1 {
		return nil, fmt.Errorf("expected at most one payload argument, got %d", len(args))
	}
	switch p := args[0].(type) {
	case nil:
		return nil, nil
	case ir.Object:
		return p.Clone(), nil
	case map[string]any:
		return ir.ObjectFromGo(p)
	default:
		return nil, fmt.Errorf("unsupported payload type %T", args[0])
	}
}
