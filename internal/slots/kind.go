package slots

// Kind tags the width and interpretation of a slot's target variable.
// The tag set is fixed; there is no notion of compound or wider types.
type Kind uint8

const (
	I8 Kind = iota
	U8
	I16
	U16
	I32
	U32
	F32
)

// Size returns the element width in bytes.
func (k Kind) Size() uint32 {
	switch k {
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	default:
		return 4
	}
}

// Alignment returns the required address alignment in bytes. For every
// kind in the set this equals the element size.
func (k Kind) Alignment() uint32 {
	return k.Size()
}

// Signed reports whether the kind is a signed integer.
func (k Kind) Signed() bool {
	return k == I8 || k == I16 || k == I32
}

func (k Kind) String() string {
	switch k {
	case I8:
		return "i8"
	case U8:
		return "u8"
	case I16:
		return "i16"
	case U16:
		return "u16"
	case I32:
		return "i32"
	case U32:
		return "u32"
	case F32:
		return "f32"
	default:
		return "unknown"
	}
}
