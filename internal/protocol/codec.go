package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns packets into wire frames and back. Encoded packets may be
// concatenated into one buffer; Decode splits such a burst.
type Codec interface {
	Name() string
	Encode(p Packet) ([]byte, error)
	Decode(b []byte) ([]Packet, error)
}

func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "msgpack":
		return MsgpackCodec{}, nil
	case "json":
		return JSONCodec{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// MsgpackCodec is the default binary codec. Field names come from the json tags.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Encode(p Packet) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(Envelope{Type: p.PacketType(), Data: p}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.PacketType(), err)
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Decode(b []byte) ([]Packet, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")

	var out []Packet
	for {
		var raw struct {
			Type string             `json:"type"`
			Data msgpack.RawMessage `json:"data"`
		}
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("decode envelope: %w", err)
		}
		p, ok := newPacket(raw.Type)
		if !ok {
			return out, fmt.Errorf("unknown packet type %q", raw.Type)
		}
		inner := msgpack.NewDecoder(bytes.NewReader(raw.Data))
		inner.SetCustomStructTag("json")
		if err := inner.Decode(p); err != nil {
			return out, fmt.Errorf("decode %s: %w", raw.Type, err)
		}
		out = append(out, p)
	}
}

// JSONCodec writes newline-delimited JSON envelopes; used by debug clients and tests.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(p Packet) ([]byte, error) {
	b, err := json.Marshal(Envelope{Type: p.PacketType(), Data: p})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.PacketType(), err)
	}
	return append(b, '\n'), nil
}

func (JSONCodec) Decode(b []byte) ([]Packet, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	var out []Packet
	for {
		var raw struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("decode envelope: %w", err)
		}
		p, ok := newPacket(raw.Type)
		if !ok {
			return out, fmt.Errorf("unknown packet type %q", raw.Type)
		}
		if err := json.Unmarshal(raw.Data, p); err != nil {
			return out, fmt.Errorf("decode %s: %w", raw.Type, err)
		}
		out = append(out, p)
	}
}
