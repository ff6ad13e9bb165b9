package scratch

import "testing"

func TestLimited_Alloc(t *testing.T) {
	h := NewLimited(1024)

	a := h.Alloc(1000)
	if len(a) != 1000 {
		t.Fatalf("Alloc(1000) returned %d bytes", len(a))
	}
	if b := h.Alloc(100); b != nil {
		t.Errorf("Alloc over budget returned a buffer")
	}
	if b := h.Alloc(0); b != nil {
		t.Errorf("Alloc(0) returned a buffer")
	}
	h.Free(a)
	if h.InUse() != 0 {
		t.Errorf("InUse() = %d after Free, want 0", h.InUse())
	}
}

func TestAllocHalving(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		count     int
		unit      int
		wantCount int
	}{
		{name: "fits", limit: 4096, count: 8, unit: 512, wantCount: 8},
		{name: "halved once", limit: 2048, count: 8, unit: 512, wantCount: 4},
		{name: "halved down to one", limit: 600, count: 7, unit: 512, wantCount: 1},
		{name: "nothing fits", limit: 100, count: 4, unit: 512, wantCount: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, got := AllocHalving(NewLimited(tt.limit), tt.count, tt.unit)
			if got != tt.wantCount {
				t.Errorf("AllocHalving() count = %d, want %d", got, tt.wantCount)
			}
			if len(buf) != got*tt.unit {
				t.Errorf("AllocHalving() buffer = %d bytes, want %d", len(buf), got*tt.unit)
			}
		})
	}
}
