// Package protocol implements the line-oriented command grammar spoken by
// the bridge: request parsing, call-signature metadata, the default
// signature heuristic, and the error taxonomy reported back to clients.
package protocol

// ValueType identifies one native value representation the bridge can
// marshal. The table is closed; unrecognized names fail rather than guess.
type ValueType int

const (
	Int32 ValueType = iota
	Int64
	Float32
	Float64
	CString
	Void
)

var valueTypeNames = map[string]ValueType{
	"int":    Int32,
	"long":   Int64,
	"float":  Float32,
	"double": Float64,
	"cstr":   CString,
	"void":   Void,
}

func (t ValueType) String() string {
	switch t {
	case Int32:
		return "int"
	case Int64:
		return "long"
	case Float32:
		return "float"
	case Float64:
		return "double"
	case CString:
		return "cstr"
	case Void:
		return "void"
	}
	return "unknown"
}

// ParseValueType maps a metadata type name to its ValueType. Names are
// case-sensitive exact matches.
func ParseValueType(name string) (ValueType, error) {
	t, ok := valueTypeNames[name]
	if !ok {
		return 0, Errf(TagUnsupportedType, "unrecognized type name %q", name)
	}
	return t, nil
}

// Convention selects who cleans up the stack after a foreign call.
type Convention int

const (
	// Cdecl is the platform default C convention (caller cleans up).
	Cdecl Convention = iota
	// Stdcall leaves cleanup to the callee. Only meaningful on 32-bit x86;
	// elsewhere it collapses to the default.
	Stdcall
)

func (c Convention) String() string {
	if c == Stdcall {
		return "stdcall"
	}
	return "cdecl"
}

// ParseConvention maps a metadata convention token to its Convention.
func ParseConvention(name string) (Convention, error) {
	switch name {
	case "cdecl":
		return Cdecl, nil
	case "stdcall":
		return Stdcall, nil
	}
	return 0, Errf(TagMalformedCommand, "unrecognized calling convention %q", name)
}

// Signature is the full shape of one foreign call: ordered parameter
// types, return type, and calling convention. Immutable once resolved.
type Signature struct {
	Params []ValueType
	Ret    ValueType
	Conv   Convention
}

// String renders the canonical single-token metadata form,
// e.g. "int,int(stdcall)->int". Parsing the result yields an equal
// signature.
func (s *Signature) String() string {
	buf := make([]byte, 0, 32)
	for i, p := range s.Params {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, p.String()...)
	}
	buf = append(buf, '(')
	buf = append(buf, s.Conv.String()...)
	buf = append(buf, ')')
	buf = append(buf, "->"...)
	buf = append(buf, s.Ret.String()...)
	return string(buf)
}

// Request is one parsed command line. Sig is nil when the command carried
// no metadata and the default heuristic applies.
type Request struct {
	Name string
	Sig  *Signature
	Args []string
}
