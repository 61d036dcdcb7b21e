package checksum

import "testing"

func TestSum_Deterministic(t *testing.T) {
	a := Sum([]byte("MONTH,year\n1,2013\n"))
	b := Sum([]byte("MONTH,year\n1,2013\n"))
	c := Sum([]byte("MONTH,year\n2,2013\n"))

	if a != b {
		t.Errorf("Sum not deterministic: %s != %s", a, b)
	}
	if a == c {
		t.Errorf("Sum collided for different inputs: %s", a)
	}
	if len(a) != 16 {
		t.Errorf("len(Sum) = %d, want 16 hex chars", len(a))
	}
}

func TestETag_Quoted(t *testing.T) {
	tag := ETag([]byte("x"))
	if tag[0] != '"' || tag[len(tag)-1] != '"' {
		t.Errorf("ETag = %s, want quoted value", tag)
	}
	if tag[1:len(tag)-1] != Sum([]byte("x")) {
		t.Errorf("ETag body = %s, want %s", tag, Sum([]byte("x")))
	}
}
