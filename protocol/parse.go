package protocol

import "strings"

// MaxArgs caps the positional argument count. It matches the fixed frame
// size the invocation engine builds on the C side.
const MaxArgs = 16

// Parse turns one command line into a Request.
//
// Grammar:
//
//	call <name> [sig:<t>,<t>,...(<convention>)-><rettype>] <arg> <arg> ...
//
// Tokens are whitespace-separated with no quoting, so argument literals
// cannot contain whitespace. The sig clause may span several tokens (the
// clause ends at the first token containing "->"). With an explicit
// signature, the positional token count must match the declared parameter
// count here, at parse time.
func Parse(line string) (*Request, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 || tokens[0] != "call" {
		return nil, Errf(TagMalformedCommand, "command must start with \"call\"")
	}
	if len(tokens) < 2 {
		return nil, Errf(TagMalformedCommand, "missing function name")
	}

	name := tokens[1]
	rest := tokens[2:]

	var sig *Signature
	if len(rest) > 0 && strings.HasPrefix(rest[0], "sig:") {
		clause, consumed, err := collectSigClause(rest)
		if err != nil {
			return nil, err
		}
		sig, err = ParseSignature(clause)
		if err != nil {
			return nil, err
		}
		rest = rest[consumed:]
	}

	if len(rest) > MaxArgs {
		return nil, Errf(TagMalformedCommand, "too many arguments (%d, limit %d)", len(rest), MaxArgs)
	}
	if sig != nil && len(rest) != len(sig.Params) {
		return nil, Errf(TagArgumentCountMismatch,
			"signature declares %d parameter(s), got %d argument(s)", len(sig.Params), len(rest))
	}

	return &Request{Name: name, Sig: sig, Args: rest}, nil
}

// collectSigClause joins tokens starting at the "sig:" token until one
// contains "->", returning the clause text (prefix stripped) and how many
// tokens it consumed.
func collectSigClause(tokens []string) (string, int, error) {
	var clause strings.Builder
	for i, tok := range tokens {
		if i == 0 {
			tok = strings.TrimPrefix(tok, "sig:")
		}
		clause.WriteString(tok)
		if strings.Contains(tok, "->") {
			return clause.String(), i + 1, nil
		}
	}
	return "", 0, Errf(TagMalformedCommand, "signature missing \"->\"")
}

// ParseSignature parses a metadata clause without its "sig:" prefix,
// e.g. "int,int(stdcall)->int". An absent convention token means cdecl.
// A parameter list of exactly "void" declares zero parameters, as does an
// empty list.
func ParseSignature(clause string) (*Signature, error) {
	head, retName, ok := strings.Cut(clause, "->")
	if !ok {
		return nil, Errf(TagMalformedCommand, "signature missing \"->\"")
	}

	conv := Cdecl
	if i := strings.IndexByte(head, '('); i >= 0 {
		j := strings.IndexByte(head, ')')
		if j < i {
			return nil, Errf(TagMalformedCommand, "signature missing closing parenthesis")
		}
		if strings.TrimSpace(head[j+1:]) != "" {
			return nil, Errf(TagMalformedCommand, "unexpected text after calling convention")
		}
		var err error
		conv, err = ParseConvention(strings.TrimSpace(head[i+1 : j]))
		if err != nil {
			return nil, err
		}
		head = head[:i]
	}

	var params []ValueType
	names := splitNonEmpty(head)
	if !(len(names) == 1 && names[0] == "void") {
		for _, n := range names {
			if n == "void" {
				return nil, Errf(TagUnsupportedType, "void is not a parameter type")
			}
			t, err := ParseValueType(n)
			if err != nil {
				return nil, err
			}
			params = append(params, t)
		}
	}

	ret, err := ParseValueType(strings.TrimSpace(retName))
	if err != nil {
		return nil, err
	}

	return &Signature{Params: params, Ret: ret, Conv: conv}, nil
}

func splitNonEmpty(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
