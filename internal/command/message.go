// Package command implements the request/response protocol spoken over a
// message channel: a request names a receiver and carries string
// parameters, and the receiver answers with a typed response.
package command

import (
	"errors"
	"fmt"
	"sort"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrMalformed          = errors.New("command: malformed message")
	ErrDuplicateReceiver  = errors.New("command: receiver already registered")
	ErrInvalidReceiverKey = errors.New("command: invalid receiver name")
)

type ResponseType string

const (
	OK         ResponseType = "OK"
	NOK        ResponseType = "NOK"
	NOOP       ResponseType = "NOOP"
	Error      ResponseType = "ERROR"
	AuthFailed ResponseType = "AUTH_FAILED"
)

var responseTypes = map[ResponseType]struct{}{OK: {}, NOK: {}, NOOP: {}, Error: {}, AuthFailed: {}}

// Request asks the receiver named Receiver to act on Params.
type Request struct {
	Receiver string
	Params   map[string]string
}

// Response is a receiver's answer.
type Response struct {
	Type   ResponseType
	Params map[string]string
}

// Errorf builds an ERROR response carrying the message under "error".
func Errorf(format string, args ...any) Response {
	return Response{Type: Error, Params: map[string]string{"error": fmt.Sprintf(format, args...)}}
}

// Get returns the named parameter or "".
func (r Response) Get(key string) string { return r.Params[key] }

// Keys returns the parameter names in sorted order.
func (r Response) Keys() []string { return sortedKeys(r.Params) }

func (r Request) Marshal() ([]byte, error) {
	if r.Receiver == "" {
		return nil, fmt.Errorf("%w: empty receiver", ErrMalformed)
	}
	return encode("receiver", r.Receiver, r.Params)
}

func UnmarshalRequest(b []byte) (Request, error) {
	name, params, err := decode(b, "receiver")
	if err != nil {
		return Request{}, err
	}
	if name == "" {
		return Request{}, fmt.Errorf("%w: empty receiver", ErrMalformed)
	}
	return Request{Receiver: name, Params: params}, nil
}

func (r Response) Marshal() ([]byte, error) {
	if _, ok := responseTypes[r.Type]; !ok {
		return nil, fmt.Errorf("%w: unknown response type %q", ErrMalformed, r.Type)
	}
	return encode("type", string(r.Type), r.Params)
}

func UnmarshalResponse(b []byte) (Response, error) {
	typ, params, err := decode(b, "type")
	if err != nil {
		return Response{}, err
	}
	if _, ok := responseTypes[ResponseType(typ)]; !ok {
		return Response{}, fmt.Errorf("%w: unknown response type %q", ErrMalformed, typ)
	}
	return Response{Type: ResponseType(typ), Params: params}, nil
}

// encode lays a message out as a protobuf Struct:
// {<head>: string, "params": {string: string}}.
func encode(head, value string, params map[string]string) ([]byte, error) {
	p := make(map[string]any, len(params))
	for k, v := range params {
		p[k] = v
	}
	s, err := structpb.NewStruct(map[string]any{head: value, "params": p})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

func decode(b []byte, head string) (string, map[string]string, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	fields := s.GetFields()
	hv, ok := fields[head]
	if !ok {
		return "", nil, fmt.Errorf("%w: missing %q", ErrMalformed, head)
	}
	if _, isStr := hv.GetKind().(*structpb.Value_StringValue); !isStr {
		return "", nil, fmt.Errorf("%w: %q is not a string", ErrMalformed, head)
	}
	params := map[string]string{}
	for k, v := range fields["params"].GetStructValue().GetFields() {
		sv, isStr := v.GetKind().(*structpb.Value_StringValue)
		if !isStr {
			return "", nil, fmt.Errorf("%w: param %q is not a string", ErrMalformed, k)
		}
		params[k] = sv.StringValue
	}
	return hv.GetStringValue(), params, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
