package sim

import "sort"

// Standard field names used by the kernel. Velocity components are plain
// scalar fields so every field sweep goes through one code path.
const (
	FieldTracer   = "T"
	FieldFiltered = "T1"
	FieldCurv     = "K"
	FieldPressure = "p"
)

// VelocityField returns the velocity component field name for an axis.
func VelocityField(axis int) string {
	return [...]string{"u", "v", "w"}[axis]
}

// FieldStore owns per-cell field arrays keyed by field name and indexed by
// cell arena id. Arrays grow with the mesh arena; a slice handed out by
// Data is valid until the next refine.
type FieldStore struct {
	data  map[string][]float64
	names []string
	cap   int
}

// NewFieldStore creates an empty store. The kernel registers the standard
// fields at setup; expression bindings may register extra diagnostics
// fields by name.
func NewFieldStore() *FieldStore {
	return &FieldStore{data: map[string][]float64{}}
}

// Register adds a named scalar field, zero-filled to the current arena
// capacity. Registering an existing name is a configuration error.
func (fs *FieldStore) Register(name string) error {
	if _, ok := fs.data[name]; ok {
		return errBadConfigf("duplicate field %q", name)
	}
	fs.data[name] = make([]float64, fs.cap)
	fs.names = append(fs.names, name)
	sort.Strings(fs.names)
	return nil
}

// Names returns the registered field names in sorted order.
func (fs *FieldStore) Names() []string {
	out := make([]string, len(fs.names))
	copy(out, fs.names)
	return out
}

// Has reports whether a field is registered.
func (fs *FieldStore) Has(name string) bool {
	_, ok := fs.data[name]
	return ok
}

// Data returns the live array for a field. Indexed by cell arena id;
// invalidated by mesh refinement.
func (fs *FieldStore) Data(name string) []float64 {
	return fs.data[name]
}

// Snapshot returns a copy of a field array, used as the read-only ghost
// view during partition sweeps.
func (fs *FieldStore) Snapshot(name string) []float64 {
	src := fs.data[name]
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst
}

func (fs *FieldStore) grow(n int) {
	if n <= fs.cap {
		return
	}
	for name, arr := range fs.data {
		next := make([]float64, n)
		copy(next, arr)
		fs.data[name] = next
	}
	fs.cap = n
}

// prolong copies the parent value into each child. Children partition the
// parent volume equally, so volume-weighted sums are preserved exactly.
func (fs *FieldStore) prolong(parent int, children []int) {
	for _, arr := range fs.data {
		v := arr[parent]
		for _, c := range children {
			arr[c] = v
		}
	}
}

// restrict sets the parent value to the mean of its children (equal child
// volumes make the volume-weighted average a plain mean).
func (fs *FieldStore) restrict(parent int, children []int) {
	for _, arr := range fs.data {
		sum := 0.0
		for _, c := range children {
			sum += arr[c]
		}
		arr[parent] = sum / float64(len(children))
	}
}
