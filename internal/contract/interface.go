package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/circlefin/stablecoin-evm-sub003/internal/abicodec"
	"github.com/ethereum/go-ethereum/common"
)

// Lookup errors.
var (
	ErrUnknownFunction = errors.New("unknown function")
	ErrArityMismatch   = errors.New("arity mismatch")
	ErrUnknownSelector = errors.New("unknown selector")
	ErrUnknownEvent    = errors.New("unknown event")
)

// ABIEntry is one ABI entry (function, event, constructor, ...) as it appears
// in compiler output.
type ABIEntry struct {
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Inputs          []ABIParam `json:"inputs"`
	Outputs         []ABIParam `json:"outputs"`
	StateMutability string     `json:"stateMutability"`
	Anonymous       bool       `json:"anonymous,omitempty"`
}

// ABIParam is a parameter in an ABI entry.
type ABIParam struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed,omitempty"`
}

// IsReadFunction returns true if the function is read-only (view/pure).
func (e ABIEntry) IsReadFunction() bool {
	return e.Type == "function" &&
		(e.StateMutability == "view" || e.StateMutability == "pure")
}

// IsWriteFunction returns true if the function modifies state.
func (e ABIEntry) IsWriteFunction() bool {
	return e.Type == "function" &&
		(e.StateMutability == "nonpayable" || e.StateMutability == "payable")
}

// FunctionSignature is a parsed function declaration.
type FunctionSignature struct {
	Name            string
	Types           []abicodec.Type
	ParamNames      []string
	Outputs         []abicodec.Type
	StateMutability string

	selector [4]byte
}

// Signature returns the canonical "name(type1,type2)" form.
func (f *FunctionSignature) Signature() string {
	return abicodec.Signature(f.Name, f.Types)
}

// Selector returns the precomputed 4-byte selector.
func (f *FunctionSignature) Selector() [4]byte {
	return f.selector
}

// IsRead reports whether the function is view or pure.
func (f *FunctionSignature) IsRead() bool {
	return f.StateMutability == "view" || f.StateMutability == "pure"
}

// EventInput is one field of an event.
type EventInput struct {
	Name    string
	Type    abicodec.Type
	Indexed bool
}

// EventSignature is a parsed event declaration.
type EventSignature struct {
	Name      string
	Inputs    []EventInput
	Anonymous bool

	topic common.Hash
}

// Signature returns the canonical "Name(type1,type2)" form.
func (e *EventSignature) Signature() string {
	return abicodec.Signature(e.Name, e.types())
}

// Topic returns topic 0, the Keccak-256 of the signature.
func (e *EventSignature) Topic() common.Hash {
	return e.topic
}

func (e *EventSignature) types() []abicodec.Type {
	types := make([]abicodec.Type, len(e.Inputs))
	for i, in := range e.Inputs {
		types[i] = in.Type
	}
	return types
}

// Interface is a contract interface parsed once into lookup tables. It is
// not modified after NewInterface returns.
type Interface struct {
	Name string

	functions  []*FunctionSignature
	events     []*EventSignature
	bySelector map[[4]byte]*FunctionSignature
	byTopic    map[common.Hash]*EventSignature
	skipped    []string
}

// NewInterface builds an Interface from raw ABI entries. Declaration order is
// preserved. Entries using types the codec does not support (arrays, tuples)
// are left out and reported by Skipped.
func NewInterface(name string, entries []ABIEntry) (*Interface, error) {
	iface := &Interface{
		Name:       name,
		bySelector: make(map[[4]byte]*FunctionSignature),
		byTopic:    make(map[common.Hash]*EventSignature),
	}

	for _, e := range entries {
		switch e.Type {
		case "function":
			fn, err := parseFunction(e)
			if err != nil {
				if errors.Is(err, abicodec.ErrUnsupportedType) {
					iface.skipped = append(iface.skipped, e.Name)
					continue
				}
				return nil, fmt.Errorf("%s: function %s: %w", name, e.Name, err)
			}
			iface.functions = append(iface.functions, fn)
			if _, dup := iface.bySelector[fn.selector]; !dup {
				iface.bySelector[fn.selector] = fn
			}

		case "event":
			ev, err := parseEvent(e)
			if err != nil {
				if errors.Is(err, abicodec.ErrUnsupportedType) {
					iface.skipped = append(iface.skipped, e.Name)
					continue
				}
				return nil, fmt.Errorf("%s: event %s: %w", name, e.Name, err)
			}
			iface.events = append(iface.events, ev)
			if _, dup := iface.byTopic[ev.topic]; !dup && !ev.Anonymous {
				iface.byTopic[ev.topic] = ev
			}
		}
	}
	return iface, nil
}

func parseFunction(e ABIEntry) (*FunctionSignature, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("%w: function without a name", abicodec.ErrMalformedInput)
	}
	fn := &FunctionSignature{Name: e.Name, StateMutability: e.StateMutability}
	for _, p := range e.Inputs {
		t, err := abicodec.ParseType(p.Type)
		if err != nil {
			return nil, err
		}
		fn.Types = append(fn.Types, t)
		fn.ParamNames = append(fn.ParamNames, p.Name)
	}
	for _, p := range e.Outputs {
		t, err := abicodec.ParseType(p.Type)
		if err != nil {
			return nil, err
		}
		fn.Outputs = append(fn.Outputs, t)
	}
	fn.selector = abicodec.Selector(fn.Name, fn.Types)
	return fn, nil
}

func parseEvent(e ABIEntry) (*EventSignature, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("%w: event without a name", abicodec.ErrMalformedInput)
	}
	ev := &EventSignature{Name: e.Name, Anonymous: e.Anonymous}
	for _, p := range e.Inputs {
		t, err := abicodec.ParseType(p.Type)
		if err != nil {
			return nil, err
		}
		ev.Inputs = append(ev.Inputs, EventInput{Name: p.Name, Type: t, Indexed: p.Indexed})
	}
	ev.topic = abicodec.EventTopic(ev.Name, ev.types())
	return ev, nil
}

// Functions returns every function in declaration order.
func (i *Interface) Functions() []*FunctionSignature {
	return append([]*FunctionSignature(nil), i.functions...)
}

// Events returns every event in declaration order.
func (i *Interface) Events() []*EventSignature {
	return append([]*EventSignature(nil), i.events...)
}

// Skipped lists entries left out because of unsupported types.
func (i *Interface) Skipped() []string {
	return append([]string(nil), i.skipped...)
}

// Overloads returns every declaration named name, in declaration order.
func (i *Interface) Overloads(name string) []*FunctionSignature {
	var out []*FunctionSignature
	for _, fn := range i.functions {
		if fn.Name == name {
			out = append(out, fn)
		}
	}
	return out
}

// Function resolves a function reference for a call with arity arguments.
//
// A full signature such as "transfer(address,uint256)" matches exactly. A
// bare name selects the first declaration with that name and arity. A
// negative arity skips the arity check and returns the first name match.
func (i *Interface) Function(ref string, arity int) (*FunctionSignature, error) {
	ref = strings.TrimSpace(ref)

	if strings.Contains(ref, "(") {
		name, types, err := abicodec.ParseSignature(ref)
		if err != nil {
			return nil, err
		}
		sig := abicodec.Signature(name, types)
		for _, fn := range i.functions {
			if fn.Signature() != sig {
				continue
			}
			if arity >= 0 && len(fn.Types) != arity {
				return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArityMismatch, sig, len(fn.Types), arity)
			}
			return fn, nil
		}
		return nil, fmt.Errorf("%w: %s in %s", ErrUnknownFunction, sig, i.Name)
	}

	candidates := i.Overloads(ref)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrUnknownFunction, ref, i.Name)
	}
	if arity < 0 {
		return candidates[0], nil
	}
	for _, fn := range candidates {
		if len(fn.Types) == arity {
			return fn, nil
		}
	}

	arities := make([]string, len(candidates))
	for n, fn := range candidates {
		arities[n] = fmt.Sprint(len(fn.Types))
	}
	return nil, fmt.Errorf("%w: %s takes %s arguments, got %d", ErrArityMismatch, ref, strings.Join(arities, " or "), arity)
}

// FunctionBySelector looks a function up by its 4-byte selector.
func (i *Interface) FunctionBySelector(sel [4]byte) (*FunctionSignature, error) {
	fn, ok := i.bySelector[sel]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%x in %s", ErrUnknownSelector, sel[:], i.Name)
	}
	return fn, nil
}

// Event returns the first event declared with name.
func (i *Interface) Event(name string) (*EventSignature, error) {
	for _, ev := range i.events {
		if ev.Name == name {
			return ev, nil
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrUnknownEvent, name, i.Name)
}

// EventByTopic looks an event up by topic 0.
func (i *Interface) EventByTopic(topic common.Hash) (*EventSignature, error) {
	ev, ok := i.byTopic[topic]
	if !ok {
		return nil, fmt.Errorf("%w: topic %s in %s", ErrUnknownEvent, topic.Hex(), i.Name)
	}
	return ev, nil
}

// DecodedEvent is a log decoded against its event signature. Values are
// stringified the same way decoded calls are.
type DecodedEvent struct {
	Name   string
	Fields []DecodedField
}

// DecodedField is one named event field.
type DecodedField struct {
	Name  string
	Type  string
	Value string
}

// Field returns the value of the named field.
func (d *DecodedEvent) Field(name string) (string, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// DecodeLog decodes a log's topics and data. Indexed fields come from topics
// 1..n in order; indexed bytes and string fields only carry their hash, which
// is rendered as hex.
func (i *Interface) DecodeLog(topics []common.Hash, data []byte) (*DecodedEvent, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: log has no topics", ErrUnknownEvent)
	}
	ev, err := i.EventByTopic(topics[0])
	if err != nil {
		return nil, err
	}

	var dataTypes []abicodec.Type
	for _, in := range ev.Inputs {
		if !in.Indexed {
			dataTypes = append(dataTypes, in.Type)
		}
	}
	dataValues, err := abicodec.DecodeArguments(dataTypes, data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s data: %w", ev.Name, err)
	}

	out := &DecodedEvent{Name: ev.Name}
	topicIdx, dataIdx := 1, 0
	for _, in := range ev.Inputs {
		field := DecodedField{Name: in.Name, Type: in.Type.String()}
		if in.Indexed {
			if topicIdx >= len(topics) {
				return nil, fmt.Errorf("%w: %s expects more indexed topics than the log has", abicodec.ErrMalformedInput, ev.Name)
			}
			word := topics[topicIdx].Bytes()
			topicIdx++
			if in.Type.IsDynamic() {
				field.Value = abicodec.Add0x(abicodec.ToHexString(word))
			} else {
				v, err := abicodec.DecodeWord(in.Type, word)
				if err != nil {
					return nil, fmt.Errorf("decoding %s.%s: %w", ev.Name, in.Name, err)
				}
				field.Value = abicodec.Stringify(in.Type, v)
			}
		} else {
			field.Value = abicodec.Stringify(in.Type, dataValues[dataIdx])
			dataIdx++
		}
		out.Fields = append(out.Fields, field)
	}
	return out, nil
}
