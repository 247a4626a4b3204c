package compiler

// FnDecl is what call sites need to know about a function: its argument
// layout, its return type and the routine that implements it.
type FnDecl struct {
	Name    string
	Args    []Field
	Ret     TypeID // NoType when the function returns nothing
	Routine int    // index into the program's routine table
}

// FnAlloc maps function names to declarations. There is no overloading.
type FnAlloc struct {
	fns   map[string]*FnDecl
	order []string
}

// NewFnAlloc creates an empty function allocator.
func NewFnAlloc() *FnAlloc {
	return &FnAlloc{fns: make(map[string]*FnDecl)}
}

// Alloc registers fn. Registering a name twice is an error.
func (a *FnAlloc) Alloc(fn *FnDecl) error {
	if _, dup := a.fns[fn.Name]; dup {
		return &AllocError{Op: "alloc fn", Name: fn.Name, Err: ErrDuplicateFunction}
	}
	a.fns[fn.Name] = fn
	a.order = append(a.order, fn.Name)
	return nil
}

// Get returns the declaration registered under name.
func (a *FnAlloc) Get(name string) (*FnDecl, error) {
	fn, ok := a.fns[name]
	if !ok {
		return nil, &AllocError{Op: "get fn", Name: name, Err: ErrUndefinedFunction}
	}
	return fn, nil
}

// Names returns function names in registration order.
func (a *FnAlloc) Names() []string {
	return append([]string(nil), a.order...)
}

// ArgsSize returns the bytes fn's arguments occupy when laid out one after
// another, which is the length of the range a call copies into the callee's
// frame.
func ArgsSize(types *TypeTable, fn *FnDecl) (uint16, error) {
	var total int
	for _, arg := range fn.Args {
		size, err := types.SizeOf(arg.Type)
		if err != nil {
			return 0, &AllocError{Op: "args size", Name: fn.Name + PathSeparator + arg.Name, Err: err}
		}
		total += int(size)
	}
	if total > 0xFFFF {
		return 0, &AllocError{Op: "args size", Name: fn.Name, Err: ErrTypeTooLarge}
	}
	return uint16(total), nil
}
