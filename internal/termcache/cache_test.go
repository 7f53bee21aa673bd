package termcache

import (
	"strings"
	"testing"

	"github.com/jmfrees/zombodb/internal/broadcast"
	"github.com/jmfrees/zombodb/internal/fastterms"
)

func TestKeyIsDeterministic(t *testing.T) {
	req := broadcast.TermsRequest{
		Index:    "products",
		Field:    "sku",
		Query:    "color:red",
		DataType: fastterms.DataTypeString,
	}
	if Key(req) != Key(req) {
		t.Fatal("same request produced different keys")
	}
	if !strings.HasPrefix(Key(req), keyPrefix) {
		t.Fatalf("key %q missing prefix", Key(req))
	}
}

func TestKeyDistinguishesRequests(t *testing.T) {
	base := broadcast.TermsRequest{
		Index:    "products",
		Field:    "sku",
		Query:    "color:red",
		DataType: fastterms.DataTypeString,
	}
	variants := []broadcast.TermsRequest{
		{Index: "orders", Field: base.Field, Query: base.Query, DataType: base.DataType},
		{Index: base.Index, Field: "id", Query: base.Query, DataType: base.DataType},
		{Index: base.Index, Field: base.Field, Query: "color:blue", DataType: base.DataType},
		{Index: base.Index, Field: base.Field, Query: base.Query, DataType: fastterms.DataTypeLong},
	}
	seen := map[string]bool{Key(base): true}
	for _, v := range variants {
		k := Key(v)
		if seen[k] {
			t.Fatalf("key collision for %+v", v)
		}
		seen[k] = true
	}
}

func TestKeyFieldBoundaries(t *testing.T) {
	// Separator must prevent "ab"+"c" colliding with "a"+"bc".
	a := broadcast.TermsRequest{Index: "ab", Field: "c"}
	b := broadcast.TermsRequest{Index: "a", Field: "bc"}
	if Key(a) == Key(b) {
		t.Fatal("field boundary collision")
	}
}
