package gateway

import (
	"encoding/json"

	"github.com/agentdesk/agentdesk/internal/store"
)

// The optional* types distinguish absent, null, and set JSON fields so the
// settings endpoint can build explicit per-field patches.

type optionalBool struct {
	set   bool
	null  bool
	value bool
}

func (o *optionalBool) UnmarshalJSON(b []byte) error {
	o.set = true
	if string(b) == "null" {
		o.null = true
		return nil
	}
	return json.Unmarshal(b, &o.value)
}

func (o optionalBool) boolPatch() store.BoolPatch {
	switch {
	case !o.set:
		return store.BoolPatch{}
	case o.null:
		return store.BoolPatch{Op: store.OpRemove}
	default:
		return store.BoolPatch{Op: store.OpSet, Value: o.value}
	}
}

type optionalString struct {
	set   bool
	null  bool
	value string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
	o.set = true
	if string(b) == "null" {
		o.null = true
		return nil
	}
	return json.Unmarshal(b, &o.value)
}

func (o optionalString) stringPatch() store.StringPatch {
	switch {
	case !o.set:
		return store.StringPatch{}
	case o.null:
		return store.StringPatch{Op: store.OpRemove}
	default:
		return store.StringPatch{Op: store.OpSet, Value: o.value}
	}
}

type optionalInt struct {
	set   bool
	null  bool
	value int
}

func (o *optionalInt) UnmarshalJSON(b []byte) error {
	o.set = true
	if string(b) == "null" {
		o.null = true
		return nil
	}
	return json.Unmarshal(b, &o.value)
}

func (o optionalInt) intPatch() store.IntPatch {
	switch {
	case !o.set:
		return store.IntPatch{}
	case o.null:
		return store.IntPatch{Op: store.OpRemove}
	default:
		return store.IntPatch{Op: store.OpSet, Value: o.value}
	}
}

type optionalFloat struct {
	set   bool
	null  bool
	value float64
}

func (o *optionalFloat) UnmarshalJSON(b []byte) error {
	o.set = true
	if string(b) == "null" {
		o.null = true
		return nil
	}
	return json.Unmarshal(b, &o.value)
}

func (o optionalFloat) floatPatch() store.FloatPatch {
	switch {
	case !o.set:
		return store.FloatPatch{}
	case o.null:
		return store.FloatPatch{Op: store.OpRemove}
	default:
		return store.FloatPatch{Op: store.OpSet, Value: o.value}
	}
}
