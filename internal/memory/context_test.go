package memory

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractEntityNames(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"what does Sarah think about the deadline", []string{"Sarah"}},
		{"remind me about the Acme Corp review", []string{"Acme Corp"}},
		{"Schedule something for tomorrow", nil},
		{"Acme Corp asked Sarah about Acme Corp", []string{"Acme Corp", "Sarah"}},
		{"", nil},
	}
	for _, tc := range tests {
		got := extractEntityNames(tc.text)
		if diff := cmp.Diff(tc.want, got, cmp.Transformer("nilSlice", func(s []string) []string {
			if len(s) == 0 {
				return nil
			}
			return s
		})); diff != "" {
			t.Errorf("extractEntityNames(%q) mismatch (-want +got):\n%s", tc.text, diff)
		}
	}
}

func TestBuildContextAssemblesBundle(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.StoreEntity(Entity{Name: "Sarah", Type: "person"}); err != nil {
		t.Fatalf("StoreEntity() error = %v", err)
	}
	if _, err := s.StoreFact(Fact{Entity: "Sarah", Text: "prefers async updates"}); err != nil {
		t.Fatalf("StoreFact() error = %v", err)
	}
	if _, err := s.StoreReflection(Reflection{Trigger: "x", Lesson: "send updates before noon"}); err != nil {
		t.Fatalf("StoreReflection() error = %v", err)
	}
	if _, err := s.StoreInteraction(Interaction{UserInput: "hi", Response: "hello"}); err != nil {
		t.Fatalf("StoreInteraction() error = %v", err)
	}

	bundle := s.BuildContext("should I send Sarah an update now?")
	if len(bundle.Entities) != 1 || bundle.Entities[0].Name != "Sarah" {
		t.Errorf("entities = %+v, want Sarah", bundle.Entities)
	}
	if len(bundle.Facts) == 0 {
		t.Error("bundle has no facts for a named entity")
	}
	if len(bundle.Reflections) == 0 {
		t.Error("bundle has no reflections despite stored lesson")
	}
	if len(bundle.RecentInteractions) != 1 {
		t.Errorf("recent interactions = %d, want 1", len(bundle.RecentInteractions))
	}
}

func TestBuildContextEmptyStore(t *testing.T) {
	s := newTestStore(t)

	// Nothing stored: every section empty, no panic, query preserved.
	bundle := s.BuildContext("anything at all")
	if bundle.Query != "anything at all" {
		t.Errorf("query = %q", bundle.Query)
	}
	if len(bundle.Entities)+len(bundle.Facts)+len(bundle.RecentInteractions) != 0 {
		t.Errorf("empty store produced non-empty bundle: %+v", bundle)
	}
}
