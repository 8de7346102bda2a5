package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHeader_CompressionSuffix(t *testing.T) {
	tests := []struct {
		name        string
		compression string
		want        string
	}{
		{"gzip appends suffix", "gz", "a.txt.gz"},
		{"no compression keeps name", "", "a.txt"},
		{"zstd appends suffix", "zst", "a.txt.zst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := mustBuildHeader(t, "a.txt", mockObject(tt.compression, 10), "")
			assert.Equal(t, tt.want, h.Filename)
			assert.Equal(t, tt.compression, h.Compression)
		})
	}
}

func TestBuildHeader_CopiesObjectFields(t *testing.T) {
	obj := mockObject("gz", 1234)
	h := mustBuildHeader(t, "/scratch/job/darshan.log", obj, "darshan")

	assert.Equal(t, obj.Hash, h.Hash)
	assert.Equal(t, int64(1234), h.Size)
	assert.Equal(t, "darshan", h.Type)
	assert.Equal(t, "nid00042", h.NodeID)
	assert.Equal(t, "42-7", h.TaskID)

	// Header 在 DataObject 释放后依然可用
	obj.Release()
	assert.Nil(t, obj.Payload)
	assert.Equal(t, int64(1234), h.Size)
}

func TestBuildHeader_Validation(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		id       Identity
	}{
		{"empty filename", "", testIdentity},
		{"quote in filename", `bad".log`, testIdentity},
		{"backslash in node id", "ok.log", Identity{NodeID: `nid\1`, TaskID: "1"}},
		{"newline in task id", "ok.log", Identity{NodeID: "nid", TaskID: "1\n2"}},
		{"invalid utf-8 in filename", "run\xe9.darshan", testIdentity},
		{"invalid utf-8 in node id", "ok.log", Identity{NodeID: "nid\xff", TaskID: "1"}},
		{"filename too long", strings.Repeat("a", MaxFilenameLen+1), testIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildHeader(tt.filename, mockObject("", 1), "", tt.id)
			assert.ErrorIs(t, err, ErrInvalidHeader)
		})
	}

	_, err := BuildHeader("x", nil, "", testIdentity)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestHeader_Serialize_FixedOrder(t *testing.T) {
	h := Header{
		Filename:    "a.txt.gz",
		NodeID:      "nid00042",
		TaskID:      "42-7",
		Compression: "gz",
		Type:        "",
		Hash:        "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		Size:        20,
	}

	want := `{"filename":"a.txt.gz","node_id":"nid00042","task_id":"42-7","compression":"gz",` +
		`"sha1sum":"da39a3ee5e6b4b0d3255bfef95601890afd80709","size":20,"type":""}`
	assert.Equal(t, want, h.Serialize())

	// 输出必须是合法 JSON
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(h.Serialize()), &decoded))
	assert.Equal(t, float64(20), decoded["size"])
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", decoded["sha1sum"])
}
