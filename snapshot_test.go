package surface

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSnapshotSortAndDerive(t *testing.T) {
	s := AssetSnapshot{
		IP: "198.51.100.7",
		Services: []Service{
			{Port: 443, Transport: "tcp"},
			{Port: 22, Transport: "tcp"},
			{Port: 8080, Transport: "tcp"},
		},
	}
	s.Sort()
	s.DerivePorts()
	want := []int{22, 443, 8080}
	if !cmp.Equal(s.OpenPorts, want) {
		t.Error(cmp.Diff(s.OpenPorts, want))
	}
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}

func TestSnapshotValidate(t *testing.T) {
	tt := []struct {
		Name string
		Snap AssetSnapshot
		Want string
	}{
		{
			Name: "PortOutOfRange",
			Snap: AssetSnapshot{
				IP:        "198.51.100.7",
				Services:  []Service{{Port: 70000}},
				OpenPorts: []int{70000},
			},
			Want: "out of range",
		},
		{
			Name: "DuplicatePort",
			Snap: AssetSnapshot{
				IP:        "198.51.100.7",
				Services:  []Service{{Port: 80}, {Port: 80}},
				OpenPorts: []int{80, 80},
			},
			Want: "duplicate port",
		},
		{
			Name: "PortsMismatch",
			Snap: AssetSnapshot{
				IP:        "198.51.100.7",
				Services:  []Service{{Port: 80}},
				OpenPorts: []int{443},
			},
			Want: "open_ports",
		},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			err := tc.Snap.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.Want) {
				t.Errorf("got %v, want substring %q", err, tc.Want)
			}
		})
	}
}

func TestServiceOnPort(t *testing.T) {
	s := AssetSnapshot{
		Services: []Service{{Port: 22, Product: "OpenSSH"}, {Port: 443, Product: "nginx"}},
	}
	if got := s.ServiceOnPort(443); got == nil || got.Product != "nginx" {
		t.Errorf("got %+v", got)
	}
	if got := s.ServiceOnPort(3389); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}
