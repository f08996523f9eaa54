package boltpersistence

import (
	"encoding/json"

	"github.com/dogmatiq/marshalkit"
	"github.com/outreachkit/engage/internal/x/bboltx"
	"github.com/outreachkit/engage/persistence"
)

var (
	// processBucketKey is the key of the bucket containing process instances.
	//
	// Within it, the keys are process-type names and the values are nested
	// buckets keyed by business key.
	processBucketKey = []byte("process")

	// idBucketKey is the key of the bucket that indexes instances by their
	// engine-assigned instance ID.
	idBucketKey = []byte("instance_id")
)

// record is the stored form of a process instance's non-key fields.
type record struct {
	InstanceID string `json:"id"`
	Revision   uint64 `json:"revision"`
	Terminal   bool   `json:"terminal,omitempty"`
	MediaType  string `json:"media_type"`
	Data       []byte `json:"data"`
}

// ref addresses an instance from the instance-ID index.
type ref struct {
	ProcessType string `json:"process_type"`
	BusinessKey string `json:"business_key"`
}

func marshalInstance(inst persistence.ProcessInstance) []byte {
	data, err := json.Marshal(record{
		InstanceID: inst.InstanceID,
		Revision:   inst.Revision,
		Terminal:   inst.Terminal,
		MediaType:  inst.Packet.MediaType,
		Data:       inst.Packet.Data,
	})
	bboltx.Must(err)

	return data
}

func unmarshalInstance(ptype, key string, data []byte) persistence.ProcessInstance {
	var rec record
	bboltx.Must(json.Unmarshal(data, &rec))

	return persistence.ProcessInstance{
		ProcessType: ptype,
		BusinessKey: key,
		InstanceID:  rec.InstanceID,
		Revision:    rec.Revision,
		Terminal:    rec.Terminal,
		Packet: marshalkit.Packet{
			MediaType: rec.MediaType,
			Data:      rec.Data,
		},
	}
}

func marshalInstanceRef(ptype, key string) []byte {
	data, err := json.Marshal(ref{
		ProcessType: ptype,
		BusinessKey: key,
	})
	bboltx.Must(err)

	return data
}

func unmarshalInstanceRef(data []byte) (ptype, key string) {
	var r ref
	bboltx.Must(json.Unmarshal(data, &r))

	return r.ProcessType, r.BusinessKey
}
