package cg

// Data mirrors ir.Data on the CG side (spec.md §3.3: "same semantics as
// IR").
type Data struct {
	Name  string
	Size  int
	Align int
	Init  []byte
}

// TU is a translation unit of target code: it exclusively owns its Data and
// Funcs (spec.md §3.5).
type TU struct {
	Data  []*Data
	Funcs []*Func
}

// NewTU creates an empty translation unit.
func NewTU() *TU { return &TU{} }

func (tu *TU) AddData(d *Data) { tu.Data = append(tu.Data, d) }
func (tu *TU) AddFunc(f *Func) { tu.Funcs = append(tu.Funcs, f) }

func (tu *TU) FindFunc(name string) *Func {
	for _, f := range tu.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (tu *TU) FindData(name string) *Data {
	for _, d := range tu.Data {
		if d.Name == name {
			return d
		}
	}
	return nil
}
