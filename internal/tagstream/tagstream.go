// Package tagstream decodes the engine's self-describing nested record
// format embedded inside TOC and SB containers: a stream of records,
// each a type code optionally preceded (inside an object) by a
// null-terminated field name, followed by either a primitive value or
// a length-prefixed nested container body.
//
// The decoder yields a lazy sequence of events rather than building a
// tree up front, so callers can project only the fields they
// recognize and still observe (and log) the rest.
package tagstream

import (
	"github.com/deploymenttheory/frostbite-extract/internal/binreader"
	"github.com/deploymenttheory/frostbite-extract/internal/errs"
)

// TypeCode identifies the shape of a record's value. Beyond the
// terminator (0x00) and the two container openers, the concrete byte
// values are this implementation's own enumeration: the source
// material describes the category of each type (integers of declared
// widths, bool, float, length-prefixed string, raw blob, SHA1, GUID)
// without fixing wire values, so one consistent assignment is picked
// here and used everywhere in this module.
type TypeCode byte

const (
	TypeEnd     TypeCode = 0x00
	TypeList    TypeCode = 0x01
	TypeObject  TypeCode = 0x02
	TypeUint8   TypeCode = 0x03
	TypeUint16  TypeCode = 0x04
	TypeUint32  TypeCode = 0x05
	TypeUint64  TypeCode = 0x06
	TypeInt8    TypeCode = 0x07
	TypeInt16   TypeCode = 0x08
	TypeInt32   TypeCode = 0x09
	TypeInt64   TypeCode = 0x0A
	TypeBool    TypeCode = 0x0B
	TypeFloat32 TypeCode = 0x0C
	TypeString  TypeCode = 0x0D
	TypeBlob    TypeCode = 0x0E
	TypeSHA1    TypeCode = 0x0F
	TypeGUID    TypeCode = 0x10
)

// ContainerKind distinguishes a List (unnamed children) from an Object
// (each child record carries a field name).
type ContainerKind int

const (
	ContainerList ContainerKind = iota
	ContainerObject
)

// EventKind discriminates the three event shapes the decoder emits.
type EventKind int

const (
	EventField EventKind = iota
	EventBeginContainer
	EventEndContainer
)

// Event is a single decoded record. Name is empty when the enclosing
// container is a List. Value and FieldType are only meaningful when
// Kind is EventField; ContainerKind is only meaningful when Kind is
// EventBeginContainer.
type Event struct {
	Kind          EventKind
	Name          string
	ContainerKind ContainerKind
	FieldType     TypeCode
	Value         interface{}
}

type frame struct {
	r    *binreader.Reader
	kind ContainerKind
	root bool
}

// Decoder walks one tag stream, maintaining a stack of open containers
// so nested length prefixes are enforced independently at every depth.
type Decoder struct {
	stack []*frame
}

// NewRootDecoder creates a Decoder over r, treating the entire
// remaining content of r as an implicit top-level Object: field names
// are present, and the stream ends either at a 0x00 terminator or at
// end-of-buffer, whichever comes first (the TOC/SB body is not itself
// length-prefixed; it runs to the end of the file region the caller
// already bounded).
func NewRootDecoder(r *binreader.Reader) *Decoder {
	return &Decoder{stack: []*frame{{r: r, kind: ContainerObject, root: true}}}
}

// Next returns the next event. The second return value is false (with
// a nil error) once the root container is exhausted.
func (d *Decoder) Next() (Event, bool, error) {
	for {
		if len(d.stack) == 0 {
			return Event{}, false, nil
		}
		top := d.stack[len(d.stack)-1]

		if top.root && top.r.Remaining() == 0 {
			d.stack = d.stack[:len(d.stack)-1]
			continue
		}

		typeCode, err := top.r.ReadUint8()
		if err != nil {
			return Event{}, false, err
		}

		if TypeCode(typeCode) == TypeEnd {
			wasRoot := top.root
			d.stack = d.stack[:len(d.stack)-1]
			if !wasRoot && top.r.Remaining() != 0 {
				return Event{}, false, errs.FormatMismatch
			}
			return Event{Kind: EventEndContainer}, true, nil
		}

		var name string
		if top.kind == ContainerObject {
			name, err = top.r.ReadNullTerminatedString()
			if err != nil {
				return Event{}, false, err
			}
		}

		switch TypeCode(typeCode) {
		case TypeList, TypeObject:
			length, err := top.r.ReadVarUint()
			if err != nil {
				return Event{}, false, err
			}
			sub, err := top.r.OpenSubview(int(length))
			if err != nil {
				return Event{}, false, err
			}
			kind := ContainerList
			if TypeCode(typeCode) == TypeObject {
				kind = ContainerObject
			}
			d.stack = append(d.stack, &frame{r: sub, kind: kind})
			return Event{Kind: EventBeginContainer, Name: name, ContainerKind: kind}, true, nil
		default:
			val, err := decodeValue(top.r, TypeCode(typeCode))
			if err != nil {
				return Event{}, false, err
			}
			return Event{Kind: EventField, Name: name, FieldType: TypeCode(typeCode), Value: val}, true, nil
		}
	}
}

// SkipContainer drains every event belonging to the container most
// recently opened by EventBeginContainer, discarding them. Used when a
// consumer does not recognize a nested container's name.
func (d *Decoder) SkipContainer() error {
	depth := 1
	for depth > 0 {
		ev, ok, err := d.Next()
		if err != nil {
			return err
		}
		if !ok {
			return errs.Truncated
		}
		switch ev.Kind {
		case EventBeginContainer:
			depth++
		case EventEndContainer:
			depth--
		}
	}
	return nil
}

func decodeValue(r *binreader.Reader, t TypeCode) (interface{}, error) {
	switch t {
	case TypeUint8:
		return r.ReadUint8()
	case TypeUint16:
		return r.ReadUint16()
	case TypeUint32:
		return r.ReadUint32()
	case TypeUint64:
		return r.ReadUint64()
	case TypeInt8:
		v, err := r.ReadUint8()
		return int8(v), err
	case TypeInt16:
		v, err := r.ReadUint16()
		return int16(v), err
	case TypeInt32:
		return r.ReadInt32()
	case TypeInt64:
		return r.ReadInt64()
	case TypeBool:
		v, err := r.ReadUint8()
		return v != 0, err
	case TypeFloat32:
		v, err := r.ReadUint32()
		return float32FromBits(v), err
	case TypeString:
		b, err := r.ReadLengthPrefixedBytes()
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case TypeBlob:
		return r.ReadLengthPrefixedBytes()
	case TypeSHA1:
		b, err := r.ReadBytes(20)
		if err != nil {
			return nil, err
		}
		var sha [20]byte
		copy(sha[:], b)
		return sha, nil
	case TypeGUID:
		b, err := r.ReadBytes(16)
		if err != nil {
			return nil, err
		}
		var guid [16]byte
		copy(guid[:], b)
		return guid, nil
	default:
		return nil, &errs.UnknownTypeCodeError{Code: byte(t)}
	}
}
