package yamlutil_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/docforge/go-docforge/internal/yamlutil"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

// ---------------------------------------------------------------------------
// TestUnmarshalStrict - Parsing with unknown-field rejection
// ---------------------------------------------------------------------------

func TestUnmarshalStrict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "valid document",
			data: "name: report\ncount: 3\n",
		},
		{
			name:    "unknown field rejected",
			data:    "name: report\ncuont: 3\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			data:    "name: [unclosed\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out sample
			err := yamlutil.UnmarshalStrict([]byte(tt.data), &out)
			if (err != nil) != tt.wantErr {
				t.Errorf("UnmarshalStrict() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (out.Name != "report" || out.Count != 3) {
				t.Errorf("parsed = %+v", out)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestUnmarshalStrict_InputValidation - Nil data, nil destination, size cap
// ---------------------------------------------------------------------------

func TestUnmarshalStrict_InputValidation(t *testing.T) {
	t.Parallel()

	var out sample

	if err := yamlutil.UnmarshalStrict(nil, &out); !errors.Is(err, yamlutil.ErrNilData) {
		t.Errorf("nil data error = %v, want ErrNilData", err)
	}
	if err := yamlutil.UnmarshalStrict([]byte("name: x"), nil); !errors.Is(err, yamlutil.ErrNilDestination) {
		t.Errorf("nil destination error = %v, want ErrNilDestination", err)
	}

	huge := []byte("name: " + strings.Repeat("x", yamlutil.MaxInputSize))
	if err := yamlutil.UnmarshalStrict(huge, &out); !errors.Is(err, yamlutil.ErrInputTooLarge) {
		t.Errorf("oversized input error = %v, want ErrInputTooLarge", err)
	}
}

// ---------------------------------------------------------------------------
// TestMarshal - Round trip through Marshal
// ---------------------------------------------------------------------------

func TestMarshal(t *testing.T) {
	t.Parallel()

	data, err := yamlutil.Marshal(sample{Name: "report", Count: 7})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out sample
	if err := yamlutil.UnmarshalStrict(data, &out); err != nil {
		t.Fatalf("UnmarshalStrict() error = %v", err)
	}
	if out.Name != "report" || out.Count != 7 {
		t.Errorf("round trip = %+v", out)
	}
}
