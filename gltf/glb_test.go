package gltf

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDoc(materials ...map[string]any) *Document {
	var list []any
	for _, m := range materials {
		list = append(list, m)
	}
	doc := &Document{
		JSON: map[string]any{
			"asset": map[string]any{"version": "2.0"},
		},
		BIN:    []byte{0xde, 0xad, 0xbe, 0xef, 0x01},
		binary: true,
	}
	if list != nil {
		doc.JSON["materials"] = list
	}
	return doc
}

func TestEncodeParse_RoundTrip(t *testing.T) {
	doc := testDoc(map[string]any{"name": "m0"})
	doc.JSON["scenes"] = []any{map[string]any{"nodes": []any{0.0}}}

	data, err := doc.Encode()
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, doc.JSON["scenes"], parsed.JSON["scenes"])
	require.Len(t, parsed.Materials(), 1)
	assert.Equal(t, "m0", parsed.Materials()[0]["name"])
	// BIN chunk comes back zero-padded to 4-byte alignment
	assert.Equal(t, doc.BIN, parsed.BIN[:len(doc.BIN)])
	assert.Equal(t, 0, len(parsed.BIN)%4)
}

func TestEncode_ChunkAlignment(t *testing.T) {
	doc := testDoc()
	data, err := doc.Encode()
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(data), 12)
	assert.Equal(t, uint32(glbMagic), binary.LittleEndian.Uint32(data[:4]))
	assert.Equal(t, uint32(glbVersion), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint32(len(data)), binary.LittleEndian.Uint32(data[8:12]))

	jsonLen := int(binary.LittleEndian.Uint32(data[12:16]))
	assert.Equal(t, 0, jsonLen%4)
}

func TestParse_BareJSON(t *testing.T) {
	doc, err := Parse([]byte(`{"asset":{"version":"2.0"},"materials":[{}]}`))
	require.NoError(t, err)
	assert.False(t, doc.binary)
	assert.Len(t, doc.Materials(), 1)

	// bare JSON documents round-trip as JSON, not GLB
	out, err := doc.Encode()
	require.NoError(t, err)
	assert.Equal(t, byte('{'), out[0])
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse([]byte("not a scene"))
	assert.Error(t, err)
}

func TestParse_TruncatedGLB(t *testing.T) {
	doc := testDoc()
	data, err := doc.Encode()
	require.NoError(t, err)

	_, err = Parse(data[:10])
	assert.Error(t, err)
}

func TestLoadSave_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.glb")
	doc := testDoc(map[string]any{"name": "m0"})
	require.NoError(t, doc.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "m0", loaded.Materials()[0]["name"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size()%4)
}

func TestCountOf(t *testing.T) {
	doc := testDoc()
	doc.JSON["images"] = []any{map[string]any{}, map[string]any{}}
	assert.Equal(t, 2, doc.CountOf("images"))
	assert.Equal(t, 0, doc.CountOf("textures"))
}
