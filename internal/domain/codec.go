package domain

import (
	"encoding/json"
	"fmt"
)

// RawRecord is the untyped key/value tree a persisted record decodes to
// before migration. Field names and shapes are whatever the writing schema
// version used.
type RawRecord map[string]json.RawMessage

// Decode parses persisted bytes into a raw tree. Malformed input returns
// ErrCorruptState; the caller substitutes schema defaults and leaves the
// bytes on disk for manual recovery.
func Decode(data []byte) (RawRecord, error) {
	var raw RawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: null document", ErrCorruptState)
	}
	return raw, nil
}

// Encode serialises a record. Unknown fields captured at decode time —
// top-level, inside the known nested structures and per participant — are
// re-emitted so a record written by a newer schema survives a round trip
// through this version. Output is indented to keep session files
// hand-inspectable.
func Encode(r *Record) ([]byte, error) {
	base, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	for k, v := range r.extra {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	for field, extras := range r.extraNested {
		withExtras, err := overlayExtras(merged[field], extras)
		if err != nil {
			return nil, fmt.Errorf("encode record %s: %w", field, err)
		}
		merged[field] = withExtras
	}
	if len(r.extraParticipants) > 0 {
		withExtras, err := overlayParticipantExtras(merged["participants"], r.extraParticipants)
		if err != nil {
			return nil, fmt.Errorf("encode record participants: %w", err)
		}
		merged["participants"] = withExtras
	}
	return json.MarshalIndent(merged, "", "  ")
}

// overlayExtras re-adds preserved unknown sub-fields to an encoded object.
// A sub-field the current schema has since claimed is left alone.
func overlayExtras(raw json.RawMessage, extras map[string]json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range extras {
		if _, known := fields[k]; !known {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}

// overlayParticipantExtras does the same per participant. Extras for an id
// no longer in the map belong to a removed or reborn participant and are
// dropped.
func overlayParticipantExtras(raw json.RawMessage, extras map[string]map[string]json.RawMessage) (json.RawMessage, error) {
	var parts map[string]json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, err
	}
	for uid, fields := range extras {
		rawP, ok := parts[uid]
		if !ok {
			continue
		}
		withExtras, err := overlayExtras(rawP, fields)
		if err != nil {
			return nil, err
		}
		parts[uid] = withExtras
	}
	return json.Marshal(parts)
}
