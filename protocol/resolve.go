package protocol

// defaultSignatures maps positional-argument counts to the signatures
// assumed when a command carries no metadata. The bridge has no access to
// the target's true prototype, so only these two shapes are ever inferred:
// the no-arg probe and the two-int call. Every other arity requires an
// explicit sig clause.
var defaultSignatures = map[int]Signature{
	0: {Ret: Int32, Conv: Cdecl},
	2: {Params: []ValueType{Int32, Int32}, Ret: Int32, Conv: Cdecl},
}

// Resolve decides the concrete call signature for a request: the explicit
// metadata verbatim when present, the default heuristic otherwise.
func Resolve(req *Request) (*Signature, error) {
	if req.Sig != nil {
		return req.Sig, nil
	}
	sig, ok := defaultSignatures[len(req.Args)]
	if !ok {
		return nil, Errf(TagAmbiguousSignature,
			"no default signature for %d argument(s); declare one with sig:", len(req.Args))
	}
	return &sig, nil
}
