package kind

import "testing"

func TestStringUnknownForOutOfRangeKind(t *testing.T) {
	if got := Kind(999).String(); got != "unknown" {
		t.Fatalf("String() = %q, want unknown", got)
	}
}

func TestScalarAndReferencePartitionCleanly(t *testing.T) {
	all := []Kind{Bool, Char, Short, Int, Long, Float, Double, String, Buffer,
		Array, Map, Pointer, Future, Function, Class, Object, Exception,
		Throwable, Null}
	for _, k := range all {
		if k.Scalar() && k.Reference() {
			t.Fatalf("%s reports both Scalar and Reference", k)
		}
	}
}
