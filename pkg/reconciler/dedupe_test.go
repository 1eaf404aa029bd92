package reconciler_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/agentstation/lbmap/pkg/reconciler"
	"github.com/agentstation/lbmap/pkg/services"
)

var sortContainers = cmpopts.SortSlices(func(a, b services.Container) bool {
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.IP < b.IP
})

func TestDedupe(t *testing.T) {
	tests := []struct {
		name string
		in   []services.Container
		want []services.Container
	}{
		{
			name: "nil stays nil",
			in:   nil,
			want: nil,
		},
		{
			name: "empty",
			in:   []services.Container{},
			want: []services.Container{},
		},
		{
			name: "exact duplicates collapse",
			in:   []services.Container{ctr("c1", "10.0.0.1"), ctr("c2", "10.0.0.2"), ctr("c1", "10.0.0.1")},
			want: []services.Container{ctr("c1", "10.0.0.1"), ctr("c2", "10.0.0.2")},
		},
		{
			name: "same id different ip are distinct",
			in:   []services.Container{ctr("c1", "10.0.0.1"), ctr("c1", "10.0.0.9")},
			want: []services.Container{ctr("c1", "10.0.0.1"), ctr("c1", "10.0.0.9")},
		},
		{
			name: "field boundaries do not collide",
			in:   []services.Container{ctr("ab", "c"), ctr("a", "bc")},
			want: []services.Container{ctr("ab", "c"), ctr("a", "bc")},
		},
		{
			name: "empty ip participates in the key",
			in:   []services.Container{ctr("c1", ""), ctr("c1", ""), ctr("c1", "10.0.0.1")},
			want: []services.Container{ctr("c1", ""), ctr("c1", "10.0.0.1")},
		},
		{
			name: "first occurrence order",
			in:   []services.Container{ctr("c3", "x"), ctr("c1", "y"), ctr("c3", "x"), ctr("c2", "z")},
			want: []services.Container{ctr("c3", "x"), ctr("c1", "y"), ctr("c2", "z")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reconciler.Dedupe(tt.in))
		})
	}
}

func TestDedupeDoesNotMutateInput(t *testing.T) {
	in := []services.Container{ctr("c1", "a"), ctr("c1", "a"), ctr("c2", "b")}
	orig := services.CopyContainers(in)
	_ = reconciler.Dedupe(in)
	assert.Equal(t, orig, in)
}

func TestDedupeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := containersGen.Draw(t, "containers")
		once := reconciler.Dedupe(in)

		// idempotent
		if diff := cmp.Diff(once, reconciler.Dedupe(once)); diff != "" {
			t.Fatalf("Dedupe not idempotent (-once +twice):\n%s", diff)
		}

		// no two results share (id, ip), and every input value survives
		seen := map[services.Container]bool{}
		for _, c := range once {
			if seen[c] {
				t.Fatalf("duplicate %v in %v", c, once)
			}
			seen[c] = true
		}
		for _, c := range in {
			if !seen[c] {
				t.Fatalf("input %v lost", c)
			}
		}
	})
}

func TestDedupeIdentityOnUniqueInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := containersGen.Draw(t, "containers")
		seen := map[services.Container]bool{}
		unique := []services.Container{}
		for _, c := range in {
			if !seen[c] {
				seen[c] = true
				unique = append(unique, c)
			}
		}

		if diff := cmp.Diff(unique, reconciler.Dedupe(unique), sortContainers); diff != "" {
			t.Fatalf("Dedupe changed duplicate-free input:\n%s", diff)
		}
	})
}
