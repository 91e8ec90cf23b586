package faxuser

import (
	"errors"
	"testing"

	"github.com/telany/faxrelay/internal/errs"
)

func TestResellerID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "100@sample.acme.service", want: "acme"},
		{in: "sample.acme.service", want: "acme"},
		{in: "acme.service", want: "service"},
		{in: "a.b.c.d", want: "c"},
		{in: "  100@Sample.ACME.Service  ", want: "acme"},
		{in: "sample..acme.service", want: "acme"},
		{in: "", wantErr: true},
		{in: "onlylabel", wantErr: true},
		{in: "100@onlylabel", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ResellerID(tc.in)
		if tc.wantErr {
			if !errors.Is(err, errs.ErrParse) {
				t.Errorf("ResellerID(%q): got err=%v, want ErrParse", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResellerID(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ResellerID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDomain(t *testing.T) {
	t.Parallel()

	if got := Domain("100@Sample.Acme.Service"); got != "sample.acme.service" {
		t.Fatalf("Domain = %q", got)
	}
	if got := Domain("sample.acme.service"); got != "sample.acme.service" {
		t.Fatalf("Domain without extension = %q", got)
	}
}
