package protocol

import (
	"errors"
	"strings"
	"testing"
)

func errTag(t *testing.T, err error) Tag {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("error %v is not a protocol.Error", err)
	}
	return perr.Tag
}

func TestParseSimple(t *testing.T) {
	req, err := Parse("call AddNumbers 5 7")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if req.Name != "AddNumbers" {
		t.Errorf("name = %q, want AddNumbers", req.Name)
	}
	if req.Sig != nil {
		t.Errorf("sig = %v, want nil", req.Sig)
	}
	if len(req.Args) != 2 || req.Args[0] != "5" || req.Args[1] != "7" {
		t.Errorf("args = %v, want [5 7]", req.Args)
	}
}

func TestParseNoArgs(t *testing.T) {
	req, err := Parse("call helloworld")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if req.Name != "helloworld" || req.Sig != nil || len(req.Args) != 0 {
		t.Errorf("got %+v, want bare helloworld request", req)
	}
}

func TestParseExplicitSignature(t *testing.T) {
	req, err := Parse("call ComputeSumStdCall sig:int,int(stdcall)->int 8 9")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if req.Sig == nil {
		t.Fatal("sig = nil, want explicit signature")
	}
	if got := req.Sig.String(); got != "int,int(stdcall)->int" {
		t.Errorf("sig = %q, want int,int(stdcall)->int", got)
	}
	if len(req.Args) != 2 {
		t.Errorf("args = %v, want [8 9]", req.Args)
	}
}

func TestParseMultiTokenSignature(t *testing.T) {
	// The sig clause may span tokens until one contains "->", as the wire
	// protocol has always allowed.
	req, err := Parse("call helloworld sig:void ->int")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if req.Sig == nil {
		t.Fatal("sig = nil, want explicit signature")
	}
	if len(req.Sig.Params) != 0 {
		t.Errorf("params = %v, want none (void list)", req.Sig.Params)
	}
	if req.Sig.Ret != Int32 || req.Sig.Conv != Cdecl {
		t.Errorf("sig = %v, want ()->int cdecl", req.Sig)
	}
}

func TestParseSignatureDefaultConvention(t *testing.T) {
	req, err := Parse("call f sig:int->int 3")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if req.Sig.Conv != Cdecl {
		t.Errorf("conv = %v, want cdecl", req.Sig.Conv)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		tag  Tag
	}{
		{"empty", "", TagMalformedCommand},
		{"wrong keyword", "invoke AddNumbers 1 2", TagMalformedCommand},
		{"keyword case", "CALL AddNumbers 1 2", TagMalformedCommand},
		{"missing name", "call", TagMalformedCommand},
		{"sig without arrow", "call f sig:int,int(stdcall)int 1 2", TagMalformedCommand},
		{"sig unclosed paren", "call f sig:int(stdcall->int 1", TagMalformedCommand},
		{"sig trailing junk", "call f sig:int(cdecl)x->int 1", TagMalformedCommand},
		{"unknown convention", "call f sig:int,int(pascal)->int 1 2", TagMalformedCommand},
		{"unknown type", "call f sig:quaternion->int 1", TagUnsupportedType},
		{"unknown return type", "call f sig:int->quaternion 1", TagUnsupportedType},
		{"void parameter in list", "call f sig:int,void->int 1 2", TagUnsupportedType},
		{"explicit count too few", "call f sig:int,int(cdecl)->int 1", TagArgumentCountMismatch},
		{"explicit count too many", "call f sig:int->int 1 2", TagArgumentCountMismatch},
		{"too many args", "call f " + strings.Repeat("1 ", 17), TagMalformedCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			if got := errTag(t, err); got != tt.tag {
				t.Errorf("tag = %s, want %s", got, tt.tag)
			}
		})
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	clauses := []string{
		"int,int(stdcall)->int",
		"int,int(cdecl)->int",
		"(cdecl)->int",
		"double,double(cdecl)->double",
		"cstr(cdecl)->cstr",
		"long,long(cdecl)->long",
		"float(stdcall)->void",
	}
	for _, clause := range clauses {
		sig, err := ParseSignature(clause)
		if err != nil {
			t.Fatalf("ParseSignature(%q) failed: %v", clause, err)
		}
		if got := sig.String(); got != clause {
			t.Errorf("round-trip of %q = %q", clause, got)
		}
		again, err := ParseSignature(sig.String())
		if err != nil {
			t.Fatalf("reparse of %q failed: %v", sig.String(), err)
		}
		if again.String() != sig.String() {
			t.Errorf("reparse of %q = %q", sig.String(), again.String())
		}
	}
}

func TestParseValueTypeCaseSensitive(t *testing.T) {
	if _, err := ParseValueType("Int"); err == nil {
		t.Error("ParseValueType(\"Int\") succeeded, want UnsupportedType")
	}
	if _, err := ParseValueType("int"); err != nil {
		t.Errorf("ParseValueType(\"int\") failed: %v", err)
	}
}
