package permission

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for v := 0; v <= 15; v++ {
		if got := Encode(Decode(v)); int(got) != v {
			t.Fatalf("round trip %d: got %d", v, got)
		}
	}
}

func TestDecodeClampsOutOfRange(t *testing.T) {
	full := Decode(15)
	for _, v := range []int{16, 17, 100, 1 << 20} {
		if Decode(v) != full {
			t.Fatalf("expected %d to clamp to full mask", v)
		}
	}
	if Decode(-1) != Decode(0) {
		t.Fatalf("expected negative value to clamp to empty mask")
	}
}

func TestMaskHas(t *testing.T) {
	m := Create | Read
	if !m.Has(Create) || !m.Has(Read) || !m.Has(Create | Read) {
		t.Fatalf("expected create+read granted on %s", m)
	}
	if m.Has(Update) || m.Has(Delete) || m.Has(Full) {
		t.Fatalf("unexpected grant on %s", m)
	}
	if !None.Has(None) {
		t.Fatalf("empty mask must satisfy the empty requirement")
	}
}

func TestMaskString(t *testing.T) {
	cases := map[Mask]string{
		None:          "0000",
		Full:          "1111",
		Create | Read: "1100",
		Delete:        "0001",
	}
	for m, want := range cases {
		if got := m.String(); got != want {
			t.Fatalf("mask %d: got %q, want %q", m, got, want)
		}
	}
}

func TestMaskJSONObjectForm(t *testing.T) {
	data, err := json.Marshal(Create | Delete)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]bool
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	want := map[string]bool{"create": true, "read": false, "update": false, "delete": true}
	for k, v := range want {
		if decoded[k] != v {
			t.Fatalf("key %s: got %v, want %v", k, decoded[k], v)
		}
	}

	var m Mask
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal mask: %v", err)
	}
	if m != Create|Delete {
		t.Fatalf("got %s, want %s", m, Create|Delete)
	}
}

func TestMaskJSONRejectsWrongKeys(t *testing.T) {
	cases := []string{
		`{"create": true, "read": true, "update": true}`,
		`{"create": true, "read": true, "update": true, "delete": true, "admin": true}`,
		`{"create": true, "read": true, "update": true, "share": true}`,
		`{"create": "yes", "read": true, "update": true, "delete": true}`,
		`[true, true, true, true]`,
		`7`,
	}
	for _, raw := range cases {
		var m Mask
		if err := json.Unmarshal([]byte(raw), &m); !errors.Is(err, ErrInvalidKeys) {
			t.Fatalf("input %s: got err %v, want ErrInvalidKeys", raw, err)
		}
	}
}
