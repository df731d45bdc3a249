package protocol

import (
	"github.com/invopop/jsonschema"
)

// Schemas returns the JSON schema of every packet payload keyed by file name.
func Schemas() map[string]*jsonschema.Schema {
	r := &jsonschema.Reflector{}
	return map[string]*jsonschema.Schema{
		"hello.schema.json":        r.Reflect(&HelloMsg{}),
		"input.schema.json":        r.Reflect(&InputMsg{}),
		"joined.schema.json":       r.Reflect(&JoinedMsg{}),
		"map.schema.json":          r.Reflect(&MapMsg{}),
		"update.schema.json":       r.Reflect(&UpdateMsg{}),
		"alive_counts.schema.json": r.Reflect(&AliveCountsMsg{}),
		"kill.schema.json":         r.Reflect(&KillMsg{}),
		"disconnect.schema.json":   r.Reflect(&DisconnectMsg{}),
	}
}

// SchemaFileFor maps a packet type to its schema file name.
func SchemaFileFor(typ string) string {
	switch typ {
	case TypeHello:
		return "hello.schema.json"
	case TypeInput:
		return "input.schema.json"
	case TypeJoined:
		return "joined.schema.json"
	case TypeMap:
		return "map.schema.json"
	case TypeUpdate:
		return "update.schema.json"
	case TypeAliveCounts:
		return "alive_counts.schema.json"
	case TypeKill:
		return "kill.schema.json"
	case TypeDisconnect:
		return "disconnect.schema.json"
	}
	return ""
}
