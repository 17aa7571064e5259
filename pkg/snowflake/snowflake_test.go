package snowflake

import "testing"

func TestNewNodeRange(t *testing.T) {
	for _, n := range []int64{-1, 1024} {
		if _, err := NewNode(n); err == nil {
			t.Fatalf("NewNode(%d) succeeded", n)
		}
	}
	if _, err := NewNode(1023); err != nil {
		t.Fatalf("NewNode(1023): %v", err)
	}
}

func TestGenerateIncreasesAndCarriesNode(t *testing.T) {
	n, _ := NewNode(7)
	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := n.Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than %d", id, prev)
		}
		if NodeOf(id) != 7 {
			t.Fatalf("NodeOf(%d) = %d", id, NodeOf(id))
		}
		prev = id
	}
}

func TestGenerateClockBackwards(t *testing.T) {
	n, _ := NewNode(1)
	clock := int64(epoch + 5000)
	n.now = func() int64 { return clock }

	first := n.Generate()
	clock -= 1000
	second := n.Generate()
	if second <= first {
		t.Fatalf("id after clock step back %d <= %d", second, first)
	}
}

func TestGenerateStringUnique(t *testing.T) {
	n, _ := NewNode(2)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := n.GenerateString()
		if seen[s] {
			t.Fatalf("duplicate id %q", s)
		}
		seen[s] = true
	}
}
