package team

import (
	"reflect"
	"testing"
)

func TestReconcileFlags(t *testing.T) {
	tests := []struct {
		name    string
		flagged []string
		missing []string
		want    []string
	}{
		{
			name:    "nothing missing",
			flagged: []string{"p1", "p2"},
			missing: nil,
			want:    []string{"p1", "p2"},
		},
		{
			name:    "one stale flag",
			flagged: []string{"p1", "p2"},
			missing: []string{"p2"},
			want:    []string{"p1"},
		},
		{
			name:    "all stale",
			flagged: []string{"p1", "p2"},
			missing: []string{"p1", "p2"},
			want:    []string{},
		},
		{
			name:    "empty flagged",
			flagged: nil,
			missing: []string{"p1"},
			want:    []string{},
		},
		{
			name:    "order preserved",
			flagged: []string{"p3", "p1", "p2"},
			missing: []string{"p1"},
			want:    []string{"p3", "p2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReconcileFlags(tt.flagged, tt.missing)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReconcileFlags(%v, %v) = %v, want %v", tt.flagged, tt.missing, got, tt.want)
			}
		})
	}
}

func TestReconcileFlagsDoesNotAliasInput(t *testing.T) {
	flagged := []string{"p1", "p2"}
	got := ReconcileFlags(flagged, nil)
	got[0] = "mutated"
	if flagged[0] != "p1" {
		t.Error("result aliases the input slice")
	}
}
