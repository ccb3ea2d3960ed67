package ir

// Data is a named, sized, aligned global with optional initializer bytes
// (nil Init means zero-initialized, BSS-style).
type Data struct {
	Name  string
	Size  int
	Align int
	Init  []byte
}

// TU is a translation unit: a set of data symbols and an ordered list of
// functions (spec.md §3.2).
type TU struct {
	Data  []*Data
	Funcs []*Func
}

// NewTU creates an empty translation unit.
func NewTU() *TU { return &TU{} }

// AddData appends a data symbol.
func (tu *TU) AddData(d *Data) { tu.Data = append(tu.Data, d) }

// AddFunc appends a function, already bound to this TU via NewFunc.
func (tu *TU) AddFunc(f *Func) { tu.Funcs = append(tu.Funcs, f) }

// FindFunc looks up a function by name, returning nil if absent — used to
// resolve call targets' signatures for NewCall's arity/type check.
func (tu *TU) FindFunc(name string) *Func {
	for _, f := range tu.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FindData looks up a data symbol by name.
func (tu *TU) FindData(name string) *Data {
	for _, d := range tu.Data {
		if d.Name == name {
			return d
		}
	}
	return nil
}
