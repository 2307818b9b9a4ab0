package tagstream

import "github.com/deploymenttheory/frostbite-extract/internal/errs"

// Fields is a flat map of an object's primitive field values, keyed by
// field name. Nested containers are handled separately via the
// onObject callback passed to ReadObject, since a schema needs
// different logic per container name.
type Fields map[string]interface{}

// ReadObject drains the Decoder's currently-open object (root or
// nested) into Fields, invoking onObject for every nested container
// whose name it recognizes and discarding unrecognized containers via
// SkipContainer — matching the format's "unknown field names are
// preserved as opaque pairs for diagnostic logging" policy, except the
// diagnostic logging itself is the caller's responsibility.
func ReadObject(d *Decoder, onObject map[string]func(*Decoder) error) (Fields, error) {
	fields := Fields{}
	for {
		ev, ok, err := d.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.Truncated
		}
		switch ev.Kind {
		case EventEndContainer:
			return fields, nil
		case EventField:
			fields[ev.Name] = ev.Value
		case EventBeginContainer:
			if fn, recognized := onObject[ev.Name]; recognized {
				if err := fn(d); err != nil {
					return nil, err
				}
			} else if err := d.SkipContainer(); err != nil {
				return nil, err
			}
		}
	}
}

// WalkList drains the Decoder's currently-open list, invoking onObject
// for each nested-container item and onField for each primitive item
// (a list may hold either, depending on what it models — a package
// list holds objects, a free-standing-superbundle list holds strings).
func WalkList(d *Decoder, onField func(Event) error, onObject func(*Decoder) error) error {
	for {
		ev, ok, err := d.Next()
		if err != nil {
			return err
		}
		if !ok {
			return errs.Truncated
		}
		switch ev.Kind {
		case EventEndContainer:
			return nil
		case EventField:
			if onField != nil {
				if err := onField(ev); err != nil {
					return err
				}
			}
		case EventBeginContainer:
			if onObject != nil {
				if err := onObject(d); err != nil {
					return err
				}
			} else if err := d.SkipContainer(); err != nil {
				return err
			}
		}
	}
}
