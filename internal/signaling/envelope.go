package signaling

import (
	"encoding/json"
	"time"
)

// stampRelay shallow-merges raw (an arbitrary client-supplied JSON
// object) with the four server-owned envelope fields (sourcePeerId,
// namespace, room, receivedAt), overwriting any client-supplied values
// for them. Implemented as a dynamic map rather
// than a fixed struct so arbitrary client fields survive relay
// untouched, per spec §9's "never by imposing a schema".
func stampRelay(raw []byte, sourcePeerID, namespace, room string, now time.Time) ([]byte, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	obj["sourcePeerId"] = sourcePeerID
	obj["namespace"] = namespace
	obj["room"] = room
	obj["receivedAt"] = now.UTC().Format(time.RFC3339)
	return json.Marshal(obj)
}

func welcomeEnvelope(peerID, namespace, room string, now time.Time) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"type":      "welcome",
		"peerId":    peerID,
		"namespace": namespace,
		"room":      room,
		"now":       now.UTC().Format(time.RFC3339),
	})
	return data
}

func heartbeatAckEnvelope(now time.Time) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "heartbeat-ack",
		"now":  now.UTC().Format(time.RFC3339),
	})
	return data
}

func errorEnvelope(code string) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "error",
		"code": code,
	})
	return data
}
