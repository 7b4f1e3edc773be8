package rom

// Classify returns the wire category of d.
//
// Primitives are recognized by identity, so only the predefined
// primitive descriptors classify as primitive categories. Otherwise,
// classification checks for an enum, then for a register (any named,
// non-container type that is not a remote class), then for a list,
// a remote class and a map, in that order. Lists and maps classify
// only if their element type does.
func Classify(d *Descriptor) (Category, error) {
	if d == nil {
		return 0, typeErr(d, "nil descriptor")
	}
	if c, ok := primitiveCategories[d]; ok {
		return c, nil
	}
	switch {
	case d.members != nil:
		return CategoryEnum, nil
	case d.container == notContainer && !d.remote && d.name != "":
		return CategoryRegister, nil
	case d.container == listContainer:
		if _, err := Classify(d.elem); err != nil {
			return 0, typeErr(d, "list element: %w", err)
		}
		return CategoryList, nil
	case d.remote:
		return CategoryRemoteClass, nil
	case d.container == mapContainer:
		if _, err := Classify(d.elem); err != nil {
			return 0, typeErr(d, "map value: %w", err)
		}
		return CategoryMap, nil
	}
	return 0, typeErr(d, "no container shape, remote class tag or name")
}

// WireShapeOf returns the descriptor of the wire form of values of
// type d: primitives are their own wire shape, enums and remote
// classes flatten to String, registers and maps to [PropsType], and
// lists to lists of their element's wire shape.
func WireShapeOf(d *Descriptor) (*Descriptor, error) {
	c, err := Classify(d)
	if err != nil {
		return nil, err
	}
	switch c {
	case CategoryEnum, CategoryRemoteClass:
		return String, nil
	case CategoryRegister, CategoryMap:
		return PropsType, nil
	case CategoryList:
		elem, err := WireShapeOf(d.elem)
		if err != nil {
			return nil, err
		}
		return ListOf(elem), nil
	}
	if c.IsPrimitive() {
		return d, nil
	}
	return nil, typeErr(d, "unhandled category %s", c)
}
