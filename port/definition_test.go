package port

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
)

func TestBuildFromDefinitions(t *testing.T) {
	raw := `{
		"inputs": [
			{"name": "in0", "caps": "video/x-raw,format=RGB,width=4,height=4", "subject": "cam.left"},
			{"name": "in1", "format": {"width": 4, "height": 4, "components": 3, "element_size": 1}, "presence": "request"}
		],
		"outputs": [
			{"name": "out0", "caps": "video/x-raw,format=GRAY16_BE,width=2,height=2"}
		]
	}`

	var defs struct {
		Inputs  []Definition `json:"inputs"`
		Outputs []Definition `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &defs))

	r, err := BuildFromDefinitions(defs.Inputs, defs.Outputs, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"in0", "in1"}, r.InputNames())
	assert.Equal(t, []string{"out0"}, r.OutputNames())

	in0, _ := r.Input("in0")
	assert.Equal(t, "RGB", in0.Format.Layout)
	assert.Equal(t, "cam.left", in0.Subject)
	assert.Equal(t, PresenceAlways, in0.Presence)

	in1, _ := r.Input("in1")
	assert.Equal(t, PresenceRequest, in1.Presence)
	assert.True(t, in0.Format.Compatible(in1.Format))

	out0, _ := r.Output("out0")
	assert.True(t, out0.Format.BigEndian)
	assert.Equal(t, 2, out0.Format.ElementSize)
}

func TestBuildFromDefinitions_Errors(t *testing.T) {
	table := format.DefaultTable()

	tests := []struct {
		name    string
		inputs  []Definition
		outputs []Definition
		wantErr error
	}{
		{
			name:    "missing format",
			inputs:  []Definition{{Name: "in0"}},
			wantErr: errors.ErrMissingConfig,
		},
		{
			name:    "unknown pixel format",
			inputs:  []Definition{{Name: "in0", Caps: "video/x-raw,format=NV12,width=4,height=4"}},
			wantErr: errors.ErrInvalidFormat,
		},
		{
			name: "duplicate output",
			outputs: []Definition{
				{Name: "out", Caps: "video/x-raw,format=RGB,width=1,height=1"},
				{Name: "out", Caps: "video/x-raw,format=RGB,width=1,height=1"},
			},
			wantErr: errors.ErrDuplicateName,
		},
		{
			name:    "bad presence",
			inputs:  []Definition{{Name: "in0", Caps: "video/x-raw,format=RGB,width=1,height=1", Presence: "maybe"}},
			wantErr: errors.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := BuildFromDefinitions(tt.inputs, tt.outputs, table)
			require.Error(t, err)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
