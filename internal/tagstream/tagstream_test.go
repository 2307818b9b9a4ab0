package tagstream

import (
	"errors"
	"testing"

	"github.com/deploymenttheory/frostbite-extract/internal/binreader"
	"github.com/deploymenttheory/frostbite-extract/internal/errs"
)

func varuint(n uint64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if n == 0 {
			break
		}
	}
	return out
}

func cstr(s string) []byte {
	return append([]byte(s), 0)
}

// buildObjectBody builds the body (records + terminator) of an Object
// container from a flat slice of already-encoded records.
func buildObjectBody(records ...[]byte) []byte {
	var body []byte
	for _, r := range records {
		body = append(body, r...)
	}
	body = append(body, byte(TypeEnd))
	return body
}

func TestDecodeFlatFields(t *testing.T) {
	nameField := append([]byte{byte(TypeUint32)}, cstr("version")...)
	nameField = append(nameField, []byte{0x07, 0x00, 0x00, 0x00}...)

	body := buildObjectBody(nameField)
	d := NewRootDecoder(binreader.New(body))

	ev, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("unexpected err=%v ok=%v", err, ok)
	}
	if ev.Kind != EventField || ev.Name != "version" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Value.(uint32) != 7 {
		t.Fatalf("expected value 7, got %v", ev.Value)
	}

	// The root's 0x00 terminator surfaces as EndContainer first.
	ev, ok, err = d.Next()
	if err != nil || !ok || ev.Kind != EventEndContainer {
		t.Fatalf("expected EndContainer, got %+v err=%v ok=%v", ev, err, ok)
	}

	_, ok, err = d.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected stream exhausted")
	}
}

func TestNestedListBoundary(t *testing.T) {
	// An object with one field "items" holding a List of two uint8 values.
	listBody := buildObjectBody(
		append([]byte{byte(TypeUint8)}, 0x01),
		append([]byte{byte(TypeUint8)}, 0x02),
	)
	listRecord := append([]byte{byte(TypeList)}, cstr("items")...)
	listRecord = append(listRecord, varuint(uint64(len(listBody)))...)
	listRecord = append(listRecord, listBody...)

	body := buildObjectBody(listRecord)
	d := NewRootDecoder(binreader.New(body))

	ev, ok, err := d.Next()
	if err != nil || !ok || ev.Kind != EventBeginContainer || ev.ContainerKind != ContainerList {
		t.Fatalf("expected BeginContainer(list), got %+v err=%v ok=%v", ev, err, ok)
	}

	var values []uint8
	for {
		ev, ok, err = d.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatalf("stream ended before EndContainer")
		}
		if ev.Kind == EventEndContainer {
			break
		}
		if ev.Name != "" {
			t.Fatalf("list items must not carry names, got %q", ev.Name)
		}
		values = append(values, ev.Value.(uint8))
	}
	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Fatalf("unexpected list contents: %v", values)
	}
}

func TestContainerLengthMismatchIsFatal(t *testing.T) {
	// Declare a container length longer than its actual terminated body.
	inner := []byte{byte(TypeEnd)}
	listRecord := append([]byte{byte(TypeList)}, cstr("items")...)
	listRecord = append(listRecord, varuint(uint64(len(inner)+5))...) // wrong: body is shorter
	listRecord = append(listRecord, inner...)
	listRecord = append(listRecord, []byte{0, 0, 0, 0, 0}...) // padding consumed into the (falsely long) subview

	body := buildObjectBody(listRecord)
	d := NewRootDecoder(binreader.New(body))

	_, _, err := d.Next() // BeginContainer
	if err != nil {
		t.Fatalf("unexpected error on BeginContainer: %v", err)
	}
	_, _, err = d.Next() // EndContainer, but subview has 5 bytes left over
	if !errors.Is(err, errs.FormatMismatch) {
		t.Fatalf("expected FormatMismatch, got %v", err)
	}
}

func TestUnknownTypeCodeIsFatal(t *testing.T) {
	body := append([]byte{0x7F}, cstr("bogus")...)
	d := NewRootDecoder(binreader.New(body))
	_, _, err := d.Next()
	var unk *errs.UnknownTypeCodeError
	if !errors.As(err, &unk) {
		t.Fatalf("expected UnknownTypeCodeError, got %v", err)
	}
	if unk.Code != 0x7F {
		t.Fatalf("expected code 0x7F, got 0x%02x", unk.Code)
	}
}
