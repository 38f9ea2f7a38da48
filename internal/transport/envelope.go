// Package transport is the external collaborator boundary from spec.md
// §6: a socket abstraction and the wire envelope encoding the publisher
// hands to it. Both the wire-level pub/sub transport and the decoder on
// the receiving end are out of scope for this module (spec.md §1); this
// package only needs to produce bytes a symmetric decoder recognises.
package transport

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/grafana/ccbuffer/internal/txn"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the wire message published to a peer datacenter: a
// transaction paired with the dcid it was addressed to.
type Envelope struct {
	Txn  txn.Txn `json:"txn"`
	DCID string  `json:"dcid"`
}

// Encode serializes (txn, dcid) into the wire envelope. The decoder on
// the peer datacenter's side is out of scope for this module; this
// function only needs to produce a format that decoder recognises.
func Encode(t txn.Txn, dcid string) ([]byte, error) {
	b, err := jsonAPI.Marshal(Envelope{Txn: t, DCID: dcid})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode transaction envelope")
	}
	return b, nil
}

// Decode is the symmetric counterpart to Encode. It is provided for this
// module's own tests (round-tripping the envelope) rather than for a
// peer datacenter's decoder, which is out of scope: CCRDT Op payloads
// are type-erased, so a decoded Op is always a generic JSON value
// (map, slice, string, number or bool), never the concrete Go type it
// was encoded from.
func Decode(b []byte) (txn.Txn, string, error) {
	var env Envelope
	if err := jsonAPI.Unmarshal(b, &env); err != nil {
		return txn.Txn{}, "", errors.Wrap(err, "failed to decode transaction envelope")
	}
	return env.Txn, env.DCID, nil
}
