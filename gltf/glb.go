// Package gltf reads and rewrites binary glTF (GLB) scene containers and
// normalizes their materials for unlit AR rendering.
//
// The document is kept as loosely-typed JSON so that rewriting materials
// never drops parts of the scene this package does not model (accessors,
// buffer views, animations, vendor extensions).
package gltf

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
)

const (
	glbMagic   = 0x46546C67 // "glTF"
	glbVersion = 2

	chunkTypeJSON = 0x4E4F534A // "JSON"
	chunkTypeBIN  = 0x004E4942 // "BIN\0"
)

// Document is a parsed glTF scene: the JSON tree plus the binary buffer
// chunk (nil for text .gltf files).
type Document struct {
	JSON map[string]any
	BIN  []byte

	// binary records whether the source was a GLB container, so Save can
	// round-trip the original flavor.
	binary bool
}

// Load reads a GLB or .gltf file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	return Parse(data)
}

// Parse decodes GLB bytes, or a bare glTF JSON document.
func Parse(data []byte) (*Document, error) {
	if len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == glbMagic {
		return parseGLB(data)
	}

	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("not a GLB container and not valid glTF JSON: %w", err)
	}
	return &Document{JSON: tree}, nil
}

func parseGLB(data []byte) (*Document, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("GLB header truncated: %d bytes", len(data))
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	if version != glbVersion {
		return nil, fmt.Errorf("unsupported GLB version: %d", version)
	}
	total := binary.LittleEndian.Uint32(data[8:12])
	if int(total) > len(data) {
		return nil, fmt.Errorf("GLB declares %d bytes but file has %d", total, len(data))
	}

	doc := &Document{binary: true}
	offset := 12
	for offset+8 <= int(total) {
		chunkLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		chunkType := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		offset += 8
		if offset+chunkLen > int(total) {
			return nil, fmt.Errorf("GLB chunk overruns container")
		}
		chunk := data[offset : offset+chunkLen]
		offset += chunkLen

		switch chunkType {
		case chunkTypeJSON:
			var tree map[string]any
			if err := json.Unmarshal(bytes.TrimRight(chunk, " \x00"), &tree); err != nil {
				return nil, fmt.Errorf("invalid GLB JSON chunk: %w", err)
			}
			doc.JSON = tree
		case chunkTypeBIN:
			doc.BIN = append([]byte(nil), chunk...)
		default:
			// Unknown chunk types are skipped per the GLB spec.
		}
	}

	if doc.JSON == nil {
		return nil, fmt.Errorf("GLB container has no JSON chunk")
	}
	return doc, nil
}

// Save writes the document back to path in its original flavor.
func (d *Document) Save(path string) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scene file: %w", err)
	}
	return nil
}

// Encode serializes the document to GLB bytes (or bare JSON for .gltf
// sources).
func (d *Document) Encode() ([]byte, error) {
	jsonBytes, err := json.Marshal(d.JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal glTF JSON: %w", err)
	}
	if !d.binary {
		return jsonBytes, nil
	}

	// JSON chunks are padded with spaces, BIN chunks with zeros, both to
	// 4-byte alignment.
	jsonChunk := pad(jsonBytes, ' ')
	binChunk := pad(d.BIN, 0)

	total := 12 + 8 + len(jsonChunk)
	if len(binChunk) > 0 {
		total += 8 + len(binChunk)
	}

	buf := bytes.NewBuffer(make([]byte, 0, total))
	writeU32 := func(v uint32) { _ = binary.Write(buf, binary.LittleEndian, v) }

	writeU32(glbMagic)
	writeU32(glbVersion)
	writeU32(uint32(total))

	writeU32(uint32(len(jsonChunk)))
	writeU32(chunkTypeJSON)
	buf.Write(jsonChunk)

	if len(binChunk) > 0 {
		writeU32(uint32(len(binChunk)))
		writeU32(chunkTypeBIN)
		buf.Write(binChunk)
	}

	return buf.Bytes(), nil
}

func pad(b []byte, fill byte) []byte {
	if rem := len(b) % 4; rem != 0 {
		padded := make([]byte, len(b), len(b)+4-rem)
		copy(padded, b)
		for i := 0; i < 4-rem; i++ {
			padded = append(padded, fill)
		}
		return padded
	}
	return b
}

// Materials returns the document's material list. Each entry is the live
// JSON object; mutations are reflected in the document.
func (d *Document) Materials() []map[string]any {
	return objectSlice(d.JSON["materials"])
}

// Meshes returns the document's mesh list.
func (d *Document) Meshes() []map[string]any {
	return objectSlice(d.JSON["meshes"])
}

// CountOf returns the length of a top-level array property such as
// "images" or "textures".
func (d *Document) CountOf(key string) int {
	if arr, ok := d.JSON[key].([]any); ok {
		return len(arr)
	}
	return 0
}

func objectSlice(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
